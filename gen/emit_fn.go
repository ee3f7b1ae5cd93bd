package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// externFn is an extern "C" function being emitted.
type externFn struct {
	name     string
	params   []Param
	returns  string
	body     []string
	exported bool
}

func (f *externFn) signature() string {
	var b strings.Builder
	b.WriteString(f.name)
	b.WriteString("(")
	for i, p := range f.params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, p.Type)
	}
	b.WriteString(")")
	if f.returns != "" {
		b.WriteString(" -> ")
		b.WriteString(f.returns)
	}
	return b.String()
}

func (f *externFn) render() string {
	var b strings.Builder
	if f.exported {
		b.WriteString("#[no_mangle]\n")
		b.WriteString("pub ")
	}
	fmt.Fprintf(&b, "unsafe extern \"C\" fn %s {\n", f.signature())
	for _, line := range f.body {
		for _, l := range strings.Split(line, "\n") {
			b.WriteString("    ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	b.WriteString("}")
	return b.String()
}

func exportedFn(name string, params []Param, returns string, body ...string) *externFn {
	return &externFn{name: name, params: params, returns: returns, body: body, exported: true}
}

// Names the trampolines bind themselves.
var reservedArgs = map[string]bool{
	"obj":            true,
	"ffi":            true,
	"ffi_ref":        true,
	"result":         true,
	"ffi_result":     true,
	"cast_obj":       true,
	"self_":          true,
	"runtime_handle": true,
}

func argName(name string) string {
	if reservedArgs[name] {
		return name + "_"
	}
	return name
}

// callPlan turns FFI parameters into native call arguments.
type callPlan struct {
	params []Param
	pre    []string
	args   []string
	post   []string
}

func (b *Builder) planArgs(c *classifier, params []resolver.ParamRef) (*callPlan, error) {
	convs, err := classifyParams(c, params)
	if err != nil {
		return nil, err
	}
	return planCall(params, convs), nil
}

func classifyParams(c *classifier, params []resolver.ParamRef) ([]*Conversion, error) {
	convs := make([]*Conversion, len(params))
	for i, prm := range params {
		conv, err := c.Classify(prm.Type, PosArg)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", prm.Name, err)
		}
		convs[i] = conv
	}
	return convs, nil
}

func planCall(params []resolver.ParamRef, convs []*Conversion) *callPlan {
	p := &callPlan{}
	for i, prm := range params {
		conv := convs[i]
		name := argName(prm.Name)
		p.params = append(p.params, Param{Name: name, Type: conv.FFI})
		if conv.Borrow != "&mut " || conv.inPlace {
			p.args = append(p.args, conv.Arg(name))
			continue
		}
		local := name + "_native"
		p.pre = append(p.pre, fmt.Sprintf("let mut %s = %s;", local, conv.From(name)))
		p.args = append(p.args, "&mut "+local)
		if conv.WriteBack() {
			p.post = append(p.post, fmt.Sprintf("runtime::replace_mirror(%s, %s);", name, local))
		}
	}
	return p
}

// returnConversion classifies a signature's return for a trampoline.
func (b *Builder) returnConversion(c *classifier, sig *resolver.SignatureRef) (*Conversion, error) {
	if sig.Returns == nil || sig.Returns.IsUnit() {
		return nil, nil
	}
	if sig.ReturnLifetime {
		return nil, fmt.Errorf("return type %s borrows from a lifetime parameter and cannot cross the C ABI", sig.Returns)
	}
	conv, err := c.Classify(sig.Returns, PosReturn)
	if err != nil {
		return nil, fmt.Errorf("return type: %w", err)
	}
	if !conv.CanTo() {
		return nil, fmt.Errorf("return type %s cannot be handed to foreign code", sig.Returns)
	}
	return conv, nil
}

// finish completes a trampoline body around the native call expression.
// The result is converted before any write-back so it never borrows a local.
func (p *callPlan) finish(call string, ret *Conversion) []string {
	body := append([]string(nil), p.pre...)
	switch {
	case ret == nil:
		body = append(body, call+";")
		body = append(body, p.post...)
	case len(p.post) == 0:
		body = append(body, ret.To(call))
	default:
		body = append(body, "let result = "+ret.To(call)+";")
		body = append(body, p.post...)
		body = append(body, "result")
	}
	return body
}

func returnFFI(ret *Conversion) string {
	if ret == nil {
		return ""
	}
	return ret.FFI
}

// asyncHandle is the extra parameter async trampolines block on.
var asyncHandle = Param{Name: "runtime_handle", Type: "*mut std::os::raw::c_void"}

func blockOn(call string) string {
	return fmt.Sprintf("(&*(runtime_handle as *mut tokio::runtime::Runtime)).block_on(%s)", call)
}

// emitFn emits the trampoline of a free function.
func (b *Builder) emitFn(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	if it.IsGeneric() || hasTypeParams(it.Signature.Generics) {
		return nil, fmt.Errorf("generic function %s has no monomorphic trampoline", it.PathString())
	}
	plan, err := b.planArgs(c, it.Signature.Params)
	if err != nil {
		return nil, err
	}
	ret, err := b.returnConversion(c, it.Signature)
	if err != nil {
		return nil, err
	}
	call := fmt.Sprintf("%s(%s)", it.PathString(), strings.Join(plan.args, ", "))
	params := plan.params
	if it.Signature.Async {
		call = blockOn(call)
		params = append([]Param{asyncHandle}, params...)
	}
	f := newFragment(it.PathString(), b.itemModule(it), "")
	f.addFn(exportedFn(FreeFnSymbol(b.mangler.FnBase(it.Path)), params, returnFFI(ret), plan.finish(call, ret)...), RoleFunction)
	return []*Fragment{f}, nil
}

func hasTypeParams(generics []string) bool {
	for _, g := range generics {
		if !model.IsLifetime(g) {
			return true
		}
	}
	return false
}
