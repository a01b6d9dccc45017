package userprog

import (
	"bytes"
	"strings"
	"testing"

	"nachos/machine"
	"nachos/threads"
)

// Tests the synchronous console:
//	-> GetChar, PutChar, GetString, PutString

// Partitions:
//	-> input
//		-> shorter than the request (EOF); exactly the request
//	-> output
//		-> single byte; string

// Covers:
//	-> input/exactly the request; output/string
func TestConsoleRoundTrip(tt *testing.T) {
	k := threads.NewKernel(machine.NewInterrupts())
	out := new(bytes.Buffer)
	sc := NewSynchConsole(k, strings.NewReader("nachos"), out)

	buf := make([]byte, 6)
	if n := sc.GetString(buf); n != 6 {
		tt.Fatalf("GetString returned %d", n)
	}
	if string(buf) != "nachos" {
		tt.Errorf("read %q", buf)
	}

	if n := sc.PutString(buf); n != 6 {
		tt.Fatalf("PutString returned %d", n)
	}
	if out.String() != "nachos" {
		tt.Errorf("wrote %q", out.String())
	}
}

// Covers:
//	-> input/shorter than the request, EOF sticky
func TestConsoleEndOfInput(tt *testing.T) {
	k := threads.NewKernel(machine.NewInterrupts())
	sc := NewSynchConsole(k, strings.NewReader("ab"), new(bytes.Buffer))

	buf := make([]byte, 5)
	if n := sc.GetString(buf); n != 2 {
		tt.Fatalf("GetString returned %d, wanted 2", n)
	}
	if got := sc.GetChar(); got != machine.EOF {
		tt.Errorf("GetChar after end of input returned %d", got)
	}
	if got := sc.GetChar(); got != machine.EOF {
		tt.Errorf("end of input is not sticky: %d", got)
	}
}
