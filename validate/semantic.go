package validate

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// ValidationError represents a single semantic validation error.
type ValidationError struct {
	Path    string // e.g., "items[3].fields[1].type"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult holds all validation errors.
type ValidationResult struct {
	Errors []ValidationError
}

func (r *ValidationResult) addError(path, message string) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: message})
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// Validate performs semantic validation on a decoded model and its
// configuration. It checks what the schema cannot express: item shapes,
// type expression syntax, cfg predicates, duplicate names and impls that
// do not match their trait. cfg may be nil to skip configuration checks.
func Validate(crate *model.Crate, cfg *config.Config) *ValidationResult {
	result := &ValidationResult{}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			result.addError("config", err.Error())
		}
	}
	enabled := func(string) bool { return true }
	if cfg != nil {
		enabled = cfg.FeatureEnabled
	}

	if crate.Name == "" {
		result.addError("crate", "crate name must not be empty")
	}

	// Items of one path under different gates are alternatives, not duplicates.
	declared := make(map[string]bool)
	ungated := make(map[string]int)
	traits := make(map[string]*model.Item)
	traitsByName := make(map[string][]*model.Item)
	for i := range crate.Items {
		it := &crate.Items[i]
		if it.Kind == model.KindImpl {
			continue
		}
		declared[it.Path] = true
		if it.Kind == model.KindTrait {
			traits[it.Path] = it
			traitsByName[it.Name()] = append(traitsByName[it.Name()], it)
		}
		if len(it.Attrs.Cfg) == 0 {
			if prev, dup := ungated[it.Path]; dup {
				result.addError(fmt.Sprintf("items[%d].path", i), fmt.Sprintf("duplicate definition of %s (first at items[%d])", it.Path, prev))
				continue
			}
			ungated[it.Path] = i
		}
	}

	for i := range crate.Items {
		it := &crate.Items[i]
		itemPath := fmt.Sprintf("items[%d]", i)
		validateItemPath(result, itemPath, it)
		validateGenerics(result, itemPath+".generics", it.Generics)
		for k, c := range it.Attrs.Cfg {
			if _, err := resolver.EvalCfg(c, enabled); err != nil {
				result.addError(fmt.Sprintf("%s.attrs.cfg[%d]", itemPath, k), err.Error())
			}
		}
		validateKindFields(result, itemPath, it)

		switch it.Kind {
		case model.KindStruct:
			validateFields(result, itemPath, it.Fields, model.ShapeNamed)
		case model.KindTupleStruct:
			validateFields(result, itemPath, it.Fields, model.ShapeTuple)
		case model.KindUnitStruct:
			if len(it.Fields) > 0 {
				result.addError(itemPath+".fields", "unit struct must not declare fields")
			}
		case model.KindEnum:
			validateEnum(result, itemPath, it)
		case model.KindTypeAlias:
			if it.Aliased == "" {
				result.addError(itemPath+".aliased", "type alias must name the aliased type")
			} else {
				validateType(result, itemPath+".aliased", it.Aliased)
			}
		case model.KindFn:
			if it.Signature == nil {
				result.addError(itemPath+".signature", "function must declare a signature")
				break
			}
			if it.Signature.Receiver != model.ReceiverNone {
				result.addError(itemPath+".signature.receiver", "free function must not take a receiver")
			}
			validateSignature(result, itemPath+".signature", it.Signature)
		case model.KindTrait:
			validateMethods(result, itemPath, it.Methods)
		case model.KindImpl:
			validateImpl(result, itemPath, it, traits, traitsByName)
		}
	}

	for i, re := range crate.Reexports {
		rePath := fmt.Sprintf("reexports[%d]", i)
		if segs := model.SplitPath(re.Module); len(segs) == 0 || segs[0] != "crate" {
			result.addError(rePath+".module", fmt.Sprintf("module %q must start with crate", re.Module))
		}
		if !declared[re.Path] {
			result.addError(rePath+".path", fmt.Sprintf("re-export of unknown item %s", re.Path))
		}
	}

	return result
}

func validateItemPath(result *ValidationResult, path string, it *model.Item) {
	segs := model.SplitPath(it.Path)
	if len(segs) == 0 || segs[0] != "crate" {
		result.addError(path+".path", fmt.Sprintf("item path %q must start with crate", it.Path))
		return
	}
	if it.Kind != model.KindImpl && len(segs) < 2 {
		result.addError(path+".path", fmt.Sprintf("item path %q names no item", it.Path))
	}
}

func validateGenerics(result *ValidationResult, path string, generics []string) {
	seen := make(map[string]bool)
	for i, g := range generics {
		if seen[g] {
			result.addError(fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("duplicate generic parameter %q", g))
		}
		seen[g] = true
	}
}

// validateKindFields rejects sections that do not belong to the item's kind.
func validateKindFields(result *ValidationResult, path string, it *model.Item) {
	allowed := map[string]bool{}
	switch it.Kind {
	case model.KindStruct, model.KindTupleStruct, model.KindUnitStruct:
		allowed["fields"] = true
	case model.KindEnum:
		allowed["variants"] = true
	case model.KindTypeAlias:
		allowed["aliased"] = true
	case model.KindFn:
		allowed["signature"] = true
	case model.KindTrait:
		allowed["methods"] = true
	case model.KindImpl:
		allowed["methods"] = true
		allowed["trait"] = true
		allowed["self_type"] = true
	default:
		result.addError(path+".kind", fmt.Sprintf("unknown item kind %q", it.Kind))
		return
	}
	present := map[string]bool{
		"fields":    len(it.Fields) > 0,
		"variants":  len(it.Variants) > 0,
		"aliased":   it.Aliased != "",
		"signature": it.Signature != nil,
		"methods":   len(it.Methods) > 0,
		"trait":     it.Trait != "",
		"self_type": it.SelfType != "",
	}
	for _, section := range []string{"fields", "variants", "aliased", "signature", "methods", "trait", "self_type"} {
		if present[section] && !allowed[section] {
			result.addError(path+"."+section, fmt.Sprintf("%s items do not take %s", it.Kind, section))
		}
	}
	if it.Attrs.Opaque {
		switch it.Kind {
		case model.KindFn, model.KindTrait, model.KindImpl:
			result.addError(path+".attrs.opaque", fmt.Sprintf("%s items cannot be opaque", it.Kind))
		}
	}
}

func validateFields(result *ValidationResult, path string, fields []model.Field, shape model.VariantShape) {
	seen := make(map[string]bool)
	for j, f := range fields {
		fieldPath := fmt.Sprintf("%s.fields[%d]", path, j)
		switch shape {
		case model.ShapeTuple:
			if f.Name != "" && f.Name != fmt.Sprint(j) {
				result.addError(fieldPath+".name", fmt.Sprintf("positional field %d must be named %q, got %q", j, fmt.Sprint(j), f.Name))
			}
		case model.ShapeNamed:
			if f.Name == "" || model.IsPositional(f.Name) {
				result.addError(fieldPath+".name", fmt.Sprintf("named field must have an identifier, got %q", f.Name))
			}
		}
		if f.Name != "" && seen[f.Name] {
			result.addError(fieldPath+".name", fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
		validateType(result, fieldPath+".type", f.Type)
	}
}

func validateEnum(result *ValidationResult, path string, it *model.Item) {
	if len(it.Variants) == 0 {
		result.addError(path+".variants", "enum must have at least one variant")
		return
	}
	names := make(map[string]bool)
	discriminants := make(map[int64]string)
	for j := range it.Variants {
		v := &it.Variants[j]
		vPath := fmt.Sprintf("%s.variants[%d]", path, j)
		if names[v.Name] {
			result.addError(vPath+".name", fmt.Sprintf("duplicate variant %q", v.Name))
		}
		names[v.Name] = true

		shape := v.EffectiveShape()
		if shape == model.ShapeUnit && len(v.Fields) > 0 {
			result.addError(vPath+".fields", fmt.Sprintf("unit variant %q must not declare fields", v.Name))
		}
		validateFields(result, vPath, v.Fields, shape)

		if v.Discriminant == nil {
			continue
		}
		if shape != model.ShapeUnit {
			result.addError(vPath+".discriminant", fmt.Sprintf("variant %q carries data and cannot have a discriminant", v.Name))
		}
		if prev, dup := discriminants[*v.Discriminant]; dup {
			result.addError(vPath+".discriminant", fmt.Sprintf("discriminant %d already used by %q", *v.Discriminant, prev))
		}
		discriminants[*v.Discriminant] = v.Name
	}
}

func validateSignature(result *ValidationResult, path string, sig *model.Signature) {
	validateGenerics(result, path+".generics", sig.Generics)
	seen := make(map[string]bool)
	for k, p := range sig.Params {
		paramPath := fmt.Sprintf("%s.params[%d]", path, k)
		if p.Name != "" && p.Name != "_" {
			if seen[p.Name] {
				result.addError(paramPath+".name", fmt.Sprintf("duplicate parameter %q", p.Name))
			}
			seen[p.Name] = true
		}
		validateType(result, paramPath+".type", p.Type)
	}
	if sig.Returns != "" {
		validateType(result, path+".returns", sig.Returns)
	}
}

func validateMethods(result *ValidationResult, path string, methods []model.Method) {
	seen := make(map[string]bool)
	for j := range methods {
		m := &methods[j]
		mPath := fmt.Sprintf("%s.methods[%d]", path, j)
		if seen[m.Name] {
			result.addError(mPath+".name", fmt.Sprintf("duplicate method %q", m.Name))
		}
		seen[m.Name] = true
		validateSignature(result, mPath+".signature", &m.Signature)
	}
}

func validateImpl(result *ValidationResult, path string, it *model.Item, traits map[string]*model.Item, traitsByName map[string][]*model.Item) {
	if it.SelfType == "" {
		result.addError(path+".self_type", "impl must name its self type")
	} else {
		validateType(result, path+".self_type", it.SelfType)
	}
	validateMethods(result, path, it.Methods)
	if it.Trait == "" {
		return
	}
	if _, err := model.ParseType(it.Trait); err != nil {
		result.addError(path+".trait", err.Error())
		return
	}
	trait := lookupTrait(it, traits, traitsByName)
	if trait == nil {
		// Foreign traits are skipped by the generator.
		return
	}
	declared := make(map[string]*model.Method)
	for j := range trait.Methods {
		declared[trait.Methods[j].Name] = &trait.Methods[j]
	}
	implemented := make(map[string]bool)
	for j := range it.Methods {
		m := &it.Methods[j]
		implemented[m.Name] = true
		tm, ok := declared[m.Name]
		if !ok {
			result.addError(fmt.Sprintf("%s.methods[%d].name", path, j), fmt.Sprintf("method %q is not declared by trait %s", m.Name, trait.Path))
			continue
		}
		if tm.Signature.Receiver != m.Signature.Receiver {
			result.addError(fmt.Sprintf("%s.methods[%d].signature.receiver", path, j),
				fmt.Sprintf("method %q takes %q but trait %s declares %q", m.Name, m.Signature.Receiver, trait.Path, tm.Signature.Receiver))
		}
		if len(tm.Signature.Params) != len(m.Signature.Params) {
			result.addError(fmt.Sprintf("%s.methods[%d].signature.params", path, j),
				fmt.Sprintf("method %q takes %d parameter(s) but trait %s declares %d", m.Name, len(m.Signature.Params), trait.Path, len(tm.Signature.Params)))
		}
	}
	for _, tm := range trait.Methods {
		if !implemented[tm.Name] {
			result.addError(path+".methods", fmt.Sprintf("missing method %q of trait %s", tm.Name, trait.Path))
		}
	}
}

// lookupTrait finds the model trait an impl names, trying the impl's
// module, the crate root and then a unique bare name.
func lookupTrait(it *model.Item, traits map[string]*model.Item, traitsByName map[string][]*model.Item) *model.Item {
	name := it.Trait
	if i := strings.Index(name, "<"); i >= 0 {
		name = name[:i]
	}
	for _, candidate := range []string{name, it.Path + "::" + name, "crate::" + name} {
		if t, ok := traits[candidate]; ok {
			return t
		}
	}
	if !strings.Contains(name, "::") {
		if cands := traitsByName[name]; len(cands) == 1 {
			return cands[0]
		}
	}
	return nil
}

func validateType(result *ValidationResult, path, src string) {
	if src == "" {
		result.addError(path, "type must not be empty")
		return
	}
	if _, err := model.ParseType(src); err != nil {
		result.addError(path, err.Error())
	}
}
