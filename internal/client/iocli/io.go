package iocli

//go:generate moq -out io_mock.go . IO

// IO абстрагирует ввод-вывод команд клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	IsTerminal() bool
	Write(p []byte) (n int, err error)
}
