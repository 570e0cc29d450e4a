package iocli

//go:generate moq -out io_mock.go . IO

// IO is the terminal seen by the CLI
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadInput печатает prompt и возвращает введенную строку без пробелов по краям.
	// На конце ввода возвращает io.EOF.
	ReadInput(prompt string) (string, error)
	// ReadPassword читает строку без эха, если ввод является терминалом
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
