package solver_test

import (
	"context"
	"fmt"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/solver"
	"github.com/brunokim/wamstep/wam"
)

func Example() {
	p := asm.MustParse(`
        % parent(charles, william). parent(charles, harry). parent(diana, harry).
        % ?- parent(P, harry).
            put_variable X2, X0
            put_constant harry, X1
            call parent
            proceed
        parent: get_constant charles, X0
                get_constant william, X1
                proceed
        parent: get_constant charles, X0
                get_constant harry, X1
                proceed
        parent: get_constant diana, X0
                get_constant harry, X1
                proceed
    `)
	m := wam.NewMachine()
	m.Load(p, wam.Fresh)
	solutions, _ := solver.Solve(context.Background(), m, []solver.Var{{Name: "P", Addr: wam.RegAddr(2)}}, 0)
	for _, solution := range solutions {
		fmt.Println(solution)
	}
	// Output: P = charles
	// P = diana
}
