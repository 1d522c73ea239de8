package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyEsc       = "esc"
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
	KeyBack      = "b"
	KeyCamera    = "c"
	KeyLogout    = "l"
	KeyRetry     = "r"
	KeyYes       = "y"
	KeyNo        = "n"
)
