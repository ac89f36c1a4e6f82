package generator

// This file exports internal functions for use in tests and by external callers.

// ToSnakeCase converts a CamelCase string to snake_case.
func ToSnakeCase(s string) string { return toSnakeCase(s) }

// ToGoName converts a SQL name to an exported or unexported Go identifier.
func ToGoName(s string, exported bool) string { return toGoName(s, exported) }

// ToSingular converts a plural word to singular form.
func ToSingular(s string) string { return toSingular(s) }

// ParamName returns the Go name of a template parameter.
func ParamName(s string) string { return paramName(s) }

// JoinParamsSignature joins parameters into a function signature string.
func JoinParamsSignature(params []Param) string { return joinParamsSignature(params) }

// FieldType returns the Go type of a row field.
func FieldType(goType string, nullable bool) string { return fieldType(goType, nullable) }

// GoString returns s as a Go string literal.
func GoString(s string) string { return goString(s) }

// FormatSource fixes the imports of src and formats it.
func FormatSource(filename string, src []byte) ([]byte, error) { return formatSource(filename, src) }
