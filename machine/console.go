package machine

import (
	"io"

	log "github.com/sirupsen/logrus"
)

const EOF = -1

// Console simulates a byte-at-a-time terminal. Input arrives through a
// pump goroutine that posts one interrupt per byte and waits for the
// kernel to consume it; output completion is likewise signalled by
// interrupt. End of input is sticky: once the pump sees EOF every further
// GetChar returns EOF.
type Console struct {
	ints         *Interrupts
	out          io.Writer
	readHandler  func()
	writeHandler func()

	incoming int
	eof      bool
	ack      chan struct{}
}

func NewConsole(ints *Interrupts, in io.Reader, out io.Writer,
	readHandler, writeHandler func()) *Console {
	c := &Console{
		ints:         ints,
		out:          out,
		readHandler:  readHandler,
		writeHandler: writeHandler,
		incoming:     EOF,
		ack:          make(chan struct{}, 1),
	}
	if in != nil {
		ints.AddSource()
		go c.pump(in)
	}
	return c
}

func (c *Console) pump(in io.Reader) {
	defer c.ints.RemoveSource()
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n == 1 {
			b := buf[0]
			c.ints.Post(func() {
				c.incoming = int(b)
				c.readHandler()
			})
			<-c.ack
		}
		if err != nil {
			c.ints.Post(func() {
				c.eof = true
				c.readHandler()
			})
			return
		}
	}
}

// GetChar returns the byte announced by the last input interrupt, or EOF.
// Must only be called once per input interrupt.
func (c *Console) GetChar() int {
	ch := c.incoming
	c.incoming = EOF
	if ch == EOF {
		if !c.eof {
			log.Fatal("console GetChar with no character available")
		}
		return EOF
	}
	c.ack <- struct{}{}
	return ch
}

// PutChar writes one byte and posts a write-done interrupt.
func (c *Console) PutChar(b byte) {
	if c.out != nil {
		if _, err := c.out.Write([]byte{b}); err != nil {
			log.Fatalf("console output: %v", err)
		}
	}
	c.ints.Post(c.writeHandler)
}
