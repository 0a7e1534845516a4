package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/habitat-sh/core/pkg/ident"
)

// PlanName is the optional per-component override script.
const PlanName = "plan.star"

// Plan carries the component() values declared by a plan.star.
type Plan struct {
	Component string
	Ident     *ident.PackageIdent
	Env       map[string]string
	Commands  map[Verb]string
}

type planCtx struct {
	ctx       context.Context
	filepath  string
	component string
	plan      *Plan
}

func getPlanCtx(thread *starlark.Thread) *planCtx {
	return thread.Local("planCtx").(*planCtx)
}

func starComponent(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pkg string
	var env *starlark.Dict
	var build, unit, lint, fmtCmd, clean string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pkg?", &pkg, "env?", &env,
		"build?", &build, "unit?", &unit, "lint?", &lint, "fmt?", &fmtCmd, "clean?", &clean)
	if err != nil {
		return nil, err
	}

	pctx := getPlanCtx(thread)
	if pctx.plan != nil {
		return nil, eris.Errorf("%s calls component() more than once", pctx.filepath)
	}

	plan := &Plan{
		Component: pctx.component,
		Env:       map[string]string{},
		Commands:  map[Verb]string{},
	}

	if pkg != "" {
		parsed, err := ident.Parse(pkg)
		if err != nil {
			return nil, eris.Wrapf(err, "%s declares an invalid pkg", pctx.filepath)
		}
		plan.Ident = &parsed
	}

	if env != nil {
		for _, rawKey := range env.Keys() {
			key, ok := rawKey.(starlark.String)
			if !ok {
				return nil, eris.Errorf("found key type %s in env map but only strings are supported", rawKey.Type())
			}

			rawValue, _, err := env.Get(rawKey)
			if err != nil {
				return nil, err
			}
			value, ok := rawValue.(starlark.String)
			if !ok {
				return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", rawValue.Type(), key.GoString())
			}
			plan.Env[key.GoString()] = value.GoString()
		}
	}

	for verb, cmd := range map[Verb]string{
		VerbBuild: build,
		VerbUnit:  unit,
		VerbLint:  lint,
		VerbFmt:   fmtCmd,
		VerbClean: clean,
	} {
		if cmd != "" {
			plan.Commands[verb] = cmd
		}
	}

	pctx.plan = plan
	return starlark.None, nil
}

func starGetenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue)
	if err != nil {
		return nil, err
	}

	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		value = defaultValue
	}
	return starlark.String(value), nil
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "msg", &msg)
	if err != nil {
		return nil, err
	}

	pctx := getPlanCtx(thread)
	pos := thread.CallFrame(1).Pos
	log(pctx.ctx).Info().Msgf("%s:%d:%d: %s", pctx.filepath, pos.Line, pos.Col, msg)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "msg", &msg)
	if err != nil {
		return nil, err
	}

	pctx := getPlanCtx(thread)
	pos := thread.CallFrame(1).Pos
	log(pctx.ctx).Warn().Msgf("%s:%d:%d: %s", pctx.filepath, pos.Line, pos.Col, msg)
	return starlark.None, nil
}

// LoadPlan evaluates the plan.star of the given component if one
// exists. Components without a plan get a nil result, which is not an
// error.
func LoadPlan(ctx context.Context, root, component string) (*Plan, error) {
	path := filepath.Join(ComponentDir(root, component), PlanName)
	script, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	builtins := starlark.StringDict{
		"component": starlark.NewBuiltin("component", starComponent),
		"getenv":    starlark.NewBuiltin("getenv", starGetenv),
		"info":      starlark.NewBuiltin("info", starInfo),
		"warn":      starlark.NewBuiltin("warn", starWarn),
	}

	thread := &starlark.Thread{
		Name: component,
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	pctx := planCtx{
		ctx:       ctx,
		filepath:  fmt.Sprintf("components/%s/%s", component, PlanName),
		component: component,
	}
	thread.SetLocal("planCtx", &pctx)

	_, err = starlark.ExecFile(thread, pctx.filepath, script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", pctx.filepath, evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", pctx.filepath)
	}

	if pctx.plan == nil {
		return nil, eris.Errorf("%s never calls component()", pctx.filepath)
	}
	return pctx.plan, nil
}
