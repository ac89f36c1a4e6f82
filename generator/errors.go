package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kalbasit/sqltmpl/sqlerr"
)

var (
	errDuplicateClass  = errors.New("class is defined by more than one template")
	errDuplicateGoName = errors.New("names map to the same Go identifier")
	errFormat          = errors.New("generated source does not compile")
)

func errUnknownDialect(name string) error {
	return sqlerr.Configuration("", nil, "unknown dialect %q (expected one of %s)",
		name, strings.Join(dialectNames(), ", "))
}

func errClassDefinedTwice(class, first, second string) error {
	return &sqlerr.Error{
		Kind:    sqlerr.ErrSQLValidation,
		Path:    second,
		Message: fmt.Sprintf("class %s is also generated from %s", class, first),
		Err:     errDuplicateClass,
	}
}

func errGoNameClash(path, goName string, names ...string) error {
	return &sqlerr.Error{
		Kind:    sqlerr.ErrSQLValidation,
		Path:    path,
		Message: fmt.Sprintf("%s all become %s", strings.Join(names, ", "), goName),
		Err:     errDuplicateGoName,
	}
}

func errFormatSource(filename string, err error) error {
	return fmt.Errorf("formatting %s: %w: %w", filename, errFormat, err)
}
