package syntax

// Kind tags every node in a tree. The set is closed: analysis code switches
// over Kind instead of inspecting concrete node types.
type Kind uint8

const (
	KindInvalid Kind = iota

	// File level.
	KindFile
	KindModuleClause
	KindImport
	KindImportSymbol

	// Declarations.
	KindFnDecl
	KindReceiver
	KindParamList
	KindParam
	KindGenericParams
	KindGenericParam
	KindStructDecl
	KindFieldDecl
	KindEnumDecl
	KindEnumField
	KindInterfaceDecl
	KindInterfaceMethod
	KindAliasDecl
	KindSumTypeDecl
	KindConstDecl
	KindConstSpec
	KindGlobalDecl
	KindGlobalSpec

	// Statements.
	KindBlock
	KindVarDecl
	KindAssign
	KindReturn
	KindFor
	KindForIn
	KindLabeled
	KindBranch
	KindExprStmt
	KindDefer
	KindIncDec

	// Expressions.
	KindIdent
	KindSelector
	KindCall
	KindArgList
	KindGenericInst
	KindIndex
	KindRange
	KindBinary
	KindUnary
	KindParen
	KindIntLit
	KindFloatLit
	KindStringLit
	KindCharLit
	KindBoolLit
	KindNoneLit
	KindArrayLit
	KindMapLit
	KindKeyValue
	KindStructLit
	KindFieldInit
	KindEnumShorthand
	KindFnLit
	KindMatch
	KindMatchArm
	KindIf
	KindAsCast
	KindPropagate
	KindOr
	KindLabelRef

	// Type expressions.
	KindNamedType
	KindPointerType
	KindArrayType
	KindFixedArrayType
	KindMapType
	KindOptionType
	KindResultType
	KindFnType
	KindTupleType

	// KindError marks a subtree the parser could not make sense of.
	KindError
)

var kindNames = [...]string{
	KindInvalid:         "invalid",
	KindFile:            "file",
	KindModuleClause:    "module_clause",
	KindImport:          "import",
	KindImportSymbol:    "import_symbol",
	KindFnDecl:          "fn_decl",
	KindReceiver:        "receiver",
	KindParamList:       "param_list",
	KindParam:           "param",
	KindGenericParams:   "generic_params",
	KindGenericParam:    "generic_param",
	KindStructDecl:      "struct_decl",
	KindFieldDecl:       "field_decl",
	KindEnumDecl:        "enum_decl",
	KindEnumField:       "enum_field",
	KindInterfaceDecl:   "interface_decl",
	KindInterfaceMethod: "interface_method",
	KindAliasDecl:       "alias_decl",
	KindSumTypeDecl:     "sum_type_decl",
	KindConstDecl:       "const_decl",
	KindConstSpec:       "const_spec",
	KindGlobalDecl:      "global_decl",
	KindGlobalSpec:      "global_spec",
	KindBlock:           "block",
	KindVarDecl:         "var_decl",
	KindAssign:          "assign",
	KindReturn:          "return",
	KindFor:             "for",
	KindForIn:           "for_in",
	KindLabeled:         "labeled",
	KindBranch:          "branch",
	KindExprStmt:        "expr_stmt",
	KindDefer:           "defer",
	KindIncDec:          "inc_dec",
	KindIdent:           "ident",
	KindSelector:        "selector",
	KindCall:            "call",
	KindArgList:         "arg_list",
	KindGenericInst:     "generic_inst",
	KindIndex:           "index",
	KindRange:           "range",
	KindBinary:          "binary",
	KindUnary:           "unary",
	KindParen:           "paren",
	KindIntLit:          "int_lit",
	KindFloatLit:        "float_lit",
	KindStringLit:       "string_lit",
	KindCharLit:         "char_lit",
	KindBoolLit:         "bool_lit",
	KindNoneLit:         "none_lit",
	KindArrayLit:        "array_lit",
	KindMapLit:          "map_lit",
	KindKeyValue:        "key_value",
	KindStructLit:       "struct_lit",
	KindFieldInit:       "field_init",
	KindEnumShorthand:   "enum_shorthand",
	KindFnLit:           "fn_lit",
	KindMatch:           "match",
	KindMatchArm:        "match_arm",
	KindIf:              "if",
	KindAsCast:          "as_cast",
	KindPropagate:       "propagate",
	KindOr:              "or",
	KindLabelRef:        "label_ref",
	KindNamedType:       "named_type",
	KindPointerType:     "pointer_type",
	KindArrayType:       "array_type",
	KindFixedArrayType:  "fixed_array_type",
	KindMapType:         "map_type",
	KindOptionType:      "option_type",
	KindResultType:      "result_type",
	KindFnType:          "fn_type",
	KindTupleType:       "tuple_type",
	KindError:           "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "invalid"
}

// IsType reports whether k is a type expression kind.
func (k Kind) IsType() bool {
	return k >= KindNamedType && k <= KindTupleType
}

// IsExpr reports whether k is an expression kind.
func (k Kind) IsExpr() bool {
	return k >= KindIdent && k <= KindLabelRef
}

// IsDecl reports whether k introduces a top-level declaration.
func (k Kind) IsDecl() bool {
	switch k {
	case KindFnDecl, KindStructDecl, KindEnumDecl, KindInterfaceDecl,
		KindAliasDecl, KindSumTypeDecl, KindConstDecl, KindGlobalDecl:
		return true
	}
	return false
}

// Flag records modifiers attached to a node.
type Flag uint16

const (
	FlagPub Flag = 1 << iota
	FlagMut
	FlagSlice
	FlagVariadic
	FlagGated
	FlagEmbedded
	FlagShared
	FlagOption // propagation with '?'
	FlagResult // propagation with '!'
)

// Field role names used across the parser and the analyser.
const (
	FieldName       = "name"
	FieldType       = "type"
	FieldBody       = "body"
	FieldValue      = "value"
	FieldDefault    = "default"
	FieldReceiver   = "receiver"
	FieldParams     = "params"
	FieldResult     = "result"
	FieldGenerics   = "generics"
	FieldOperand    = "operand"
	FieldMember     = "field"
	FieldCallee     = "callee"
	FieldArgs       = "args"
	FieldIndex      = "index"
	FieldLeft       = "left"
	FieldRight      = "right"
	FieldElement    = "element"
	FieldKey        = "key"
	FieldCond       = "cond"
	FieldElse       = "else"
	FieldInit       = "init"
	FieldPost       = "post"
	FieldPattern    = "pattern"
	FieldLabel      = "label"
	FieldAlias      = "alias"
	FieldSymbol     = "symbol"
	FieldVariant    = "variant"
	FieldTypeArg    = "type_arg"
	FieldSize       = "size"
	FieldTarget     = "target"
	FieldStatement  = "statement"
	FieldDecl       = "decl"
	FieldSpec       = "spec"
	FieldArm        = "arm"
	FieldOrBlock    = "or_block"
	FieldQualifier  = "qualifier"
	FieldIterValue  = "iter"
	FieldBranchBody = "consequence"
)
