package common

// Virtual key codes the engine binds camera controls to.
// These values match GLFW key codes, which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW = 87 // orbit up
	KeyA = 65 // orbit left
	KeyS = 83 // orbit down
	KeyD = 68 // orbit right
	KeyQ = 81 // zoom out
	KeyE = 69 // zoom in
	KeyR = 82 // reset camera to the scene bounds

	KeyEsc = 256 // Escape key (GLFW), closes the window
)
