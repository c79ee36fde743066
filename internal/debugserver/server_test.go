package debugserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/internal/debugserver"
	"github.com/brunokim/wamstep/internal/testutil"
	"github.com/brunokim/wamstep/wam"
)

const colorProgram = `
put_variable X1, X0
call color
proceed
color: get_constant red, X0
proceed
color: get_constant green, X0
proceed
`

type response struct {
	Outcome string
	Error   string
	Fatal   bool
	State   struct {
		State        string
		PC           int
		Instr        string
		Steps        int
		Registers    []wam.RegisterView
		ChoicePoints []wam.ChoiceView
	}
}

func newApp(t *testing.T, text string) *fiber.App {
	t.Helper()
	m := wam.NewMachine(wam.WithLogger(testutil.Logger(t)))
	if text != "" {
		require.NoError(t, m.Load(asm.MustParse(text), wam.Fresh))
	}
	return debugserver.New(testutil.Context(t), m).App()
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var r response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	}
	return resp.StatusCode, r
}

func TestStep(t *testing.T) {
	app := newApp(t, colorProgram)

	status, r := do(t, app, "GET", "/state", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", r.State.State)
	require.Equal(t, "put_variable X1, X0", r.State.Instr)

	status, r = do(t, app, "POST", "/step", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "continuing", r.Outcome)
	require.Equal(t, 1, r.State.PC)
	want := []wam.RegisterView{
		{Reg: "X0", Addr: 0, Term: "_G0"},
		{Reg: "X1", Addr: 0, Term: "_G0"},
	}
	if diff := cmp.Diff(want, r.State.Registers); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}

	status, r = do(t, app, "POST", "/step", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, r.State.ChoicePoints, 1)
	require.Equal(t, "color", r.State.ChoicePoints[0].Procedure)
	require.Equal(t, 5, r.State.ChoicePoints[0].NextAlternative)
}

func TestRunAndRedo(t *testing.T) {
	app := newApp(t, colorProgram)

	status, r := do(t, app, "POST", "/run", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "succeeded", r.Outcome)
	require.Equal(t, "red", r.State.Registers[1].Term)

	_, r = do(t, app, "POST", "/redo", "")
	require.Equal(t, "continuing", r.Outcome)
	_, r = do(t, app, "POST", "/run", "")
	require.Equal(t, "succeeded", r.Outcome)
	require.Equal(t, "green", r.State.Registers[1].Term)

	_, r = do(t, app, "POST", "/redo", "")
	require.Equal(t, "failed", r.Outcome)
	require.Contains(t, r.Error, "unification failed")
	require.False(t, r.Fatal)

	status, _ = do(t, app, "POST", "/redo", "")
	require.Equal(t, http.StatusConflict, status)

	_, r = do(t, app, "POST", "/reset", "")
	require.Equal(t, "ready", r.State.State)
	require.Equal(t, 0, r.State.Steps)
}

func TestLoad(t *testing.T) {
	app := newApp(t, "")

	status, _ := do(t, app, "POST", "/step", "")
	require.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, "POST", "/load", "jump X0")
	require.Equal(t, http.StatusBadRequest, status)

	status, r := do(t, app, "POST", "/load", "put_constant foo, X0\nproceed")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", r.State.State)
	_, r = do(t, app, "POST", "/run", "")
	require.Equal(t, "succeeded", r.Outcome)

	status, r = do(t, app, "POST", "/load?mode=reuse", "get_constant foo, X0\nproceed")
	require.Equal(t, http.StatusOK, status)
	_, r = do(t, app, "POST", "/run", "")
	require.Equal(t, "succeeded", r.Outcome)

	_, _ = do(t, app, "POST", "/load", "get_constant foo, X0\nproceed")
	_, r = do(t, app, "POST", "/run", "")
	require.Equal(t, "failed", r.Outcome)
	require.True(t, r.Fatal)
}
