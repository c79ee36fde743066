package asm_test

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/test_helpers"
	"github.com/brunokim/wamstep/wam"
)

func TestParse(t *testing.T) {
	text := test_helpers.Dedent(`
        % ?- color(X), X = 'light blue'.
        query:  put_variable X1, A0   % query var
                call color
                get_constant 'light blue', X1
                proceed
        color:  get_constant red, X0
                proceed
        color:
                get_constant 'light blue', X0
                proceed
        'odd, name':
                allocate 1
                put_structure 'f%g'/2, Y0
                set_constant 'it\'s'
                unify_constant []
                deallocate
                fail
    `)
	got, err := asm.ParseString(text)
	require.NoError(t, err)
	want := &wam.Program{
		Code: []wam.Instruction{
			wam.PutVariable{Addr: wam.RegAddr(1), ArgAddr: wam.RegAddr(0)},
			wam.Call{Name: "color"},
			wam.GetConstant{Constant: wam.Constant{Name: "light blue"}, ArgAddr: wam.RegAddr(1)},
			wam.Proceed{},
			wam.GetConstant{Constant: wam.Constant{Name: "red"}, ArgAddr: wam.RegAddr(0)},
			wam.Proceed{},
			wam.GetConstant{Constant: wam.Constant{Name: "light blue"}, ArgAddr: wam.RegAddr(0)},
			wam.Proceed{},
			wam.Allocate{NumVars: 1},
			wam.PutStructure{Functor: wam.Functor{Name: "f%g", Arity: 2}, ArgAddr: wam.StackAddr(0)},
			wam.SetConstant{Constant: wam.Constant{Name: "it's"}},
			wam.UnifyConstant{Constant: wam.Constant{Name: "[]"}},
			wam.Deallocate{},
			wam.Fail{},
		},
		Symbols: wam.SymbolTable{
			"query":     {0},
			"color":     {4, 6},
			"odd, name": {8},
		},
	}
	if diff := cmp.Diff(want, got, test_helpers.EquateEmpty); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   error
		prefix string
	}{
		{"unknown instruction", "proceed\njump X0", asm.ErrSyntax, "line 2: "},
		{"wrong operand count", "put_variable X0", asm.ErrSyntax, "line 1: "},
		{"bad register", "set_variable Z0", asm.ErrSyntax, "line 1: "},
		{"bad functor", "put_structure f, X0", asm.ErrSyntax, "line 1: "},
		{"bad arity", "put_structure f/-1, X0", asm.ErrSyntax, "line 1: "},
		{"unterminated quote", "\n\ncall 'foo", asm.ErrSyntax, "line 3: "},
		{"trailing text", "call foo bar", asm.ErrSyntax, "line 1: "},
		{"empty operand", "get_value X0,", asm.ErrSyntax, "line 1: "},
		{"negative allocate", "allocate -1", asm.ErrSyntax, "line 1: "},
		{"dangling label", "proceed\nfoo:", wam.ErrInvalidProgram, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := asm.ParseString(test.text)
			require.Error(t, err)
			require.True(t, errors.Is(err, test.want), "got err: %v", err)
			require.True(t, strings.HasPrefix(err.Error(), test.prefix), "got err: %v", err)
		})
	}
}

func TestFormat(t *testing.T) {
	text := test_helpers.Dedent(`
        put_variable X1, X0
        call color
        proceed
        color:
        get_constant red, X0
        proceed
        color:
        get_constant 'light blue', X0
        proceed
    `)
	p := asm.MustParse(text)
	var buf bytes.Buffer
	require.NoError(t, asm.Format(&buf, p))
	want := strings.Join([]string{
		"\tput_variable X1, X0",
		"\tcall color",
		"\tproceed",
		"color:",
		"\tget_constant red, X0",
		"\tproceed",
		"color:",
		"\tget_constant 'light blue', X0",
		"\tproceed",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestListing(t *testing.T) {
	p := asm.MustParse("p: call q\nq: proceed")
	want := "p:\n   0\tcall q\nq:\n   1\tproceed\n"
	require.Equal(t, want, asm.Listing(p))
}

func FuzzRoundTrip(f *testing.F) {
	f.Add("put_variable X1, X0\ncall color\nproceed\ncolor: get_constant red, X0\nproceed")
	f.Add("'a b': put_structure 'f\\'g'/3, Y1 % comment\nset_constant '%'\nfail")
	f.Add("allocate 2\nunify_value Y1\nunify_constant []\ndeallocate\nproceed")
	f.Fuzz(func(t *testing.T, text string) {
		if !utf8.ValidString(text) {
			t.Skip()
		}
		p1, err := asm.ParseString(text)
		if err != nil {
			return
		}
		var buf bytes.Buffer
		if err := asm.Format(&buf, p1); err != nil {
			t.Fatalf("format: %v", err)
		}
		p2, err := asm.ParseString(buf.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", buf.String(), err)
		}
		if diff := cmp.Diff(p1.Code, p2.Code); diff != "" {
			t.Errorf("(-want, +got)%s", diff)
		}
	})
}
