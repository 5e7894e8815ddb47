package harness

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/l3aro/hotbundle/pkg/jsvalue"
)

// Assertion is the object returned by expect(actual). Every matcher records
// a failure instead of throwing.
type Assertion struct {
	// Not is the negated form of this assertion.
	Not *Assertion

	r       *Recorder
	actual  interface{}
	negated bool
}

func newAssertion(r *Recorder, actual interface{}) *Assertion {
	a := &Assertion{r: r, actual: actual}
	a.Not = &Assertion{r: r, actual: actual, negated: true}
	return a
}

// silent satisfies assert.TestingT. Matchers only use the verdict; the
// failure message is written by check in the script-facing format.
type silent struct{}

func (silent) Errorf(string, ...interface{}) {}

func (a *Assertion) check(pass bool, matcher string, expected interface{}, withExpected bool) bool {
	if a.negated {
		pass = !pass
		matcher = "not." + matcher
	}
	if pass {
		return true
	}

	var sb strings.Builder
	sb.WriteString("expect(received).")
	sb.WriteString(matcher)
	if withExpected {
		fmt.Fprintf(&sb, " expected %s, received %s", show(expected), show(a.actual))
	} else {
		fmt.Fprintf(&sb, " received %s", show(a.actual))
	}
	a.r.record(sb.String())
	return false
}

// ToBe checks strict equality of primitives.
func (a *Assertion) ToBe(expected interface{}) bool {
	return a.check(same(a.actual, expected), "toBe()", expected, true)
}

// ToEqual checks recursive equality.
func (a *Assertion) ToEqual(expected interface{}) bool {
	pass := assert.ObjectsAreEqual(jsvalue.Normalize(expected), jsvalue.Normalize(a.actual))
	return a.check(pass, "toEqual()", expected, true)
}

// ToBeTruthy checks JavaScript truthiness.
func (a *Assertion) ToBeTruthy() bool {
	return a.check(truthy(a.actual), "toBeTruthy()", nil, false)
}

// ToBeFalsy checks JavaScript falsiness.
func (a *Assertion) ToBeFalsy() bool {
	return a.check(!truthy(a.actual), "toBeFalsy()", nil, false)
}

// ToBeDefined checks the value is neither null nor undefined.
func (a *Assertion) ToBeDefined() bool {
	return a.check(a.actual != nil, "toBeDefined()", nil, false)
}

// ToBeNull checks the value is null or undefined.
func (a *Assertion) ToBeNull() bool {
	return a.check(a.actual == nil, "toBeNull()", nil, false)
}

// ToContain checks substring or element membership.
func (a *Assertion) ToContain(item interface{}) bool {
	pass := false
	switch v := a.actual.(type) {
	case string:
		s, ok := item.(string)
		pass = ok && assert.Contains(silent{}, v, s)
	case []interface{}:
		pass = assert.Contains(silent{}, jsvalue.Normalize(v), jsvalue.Normalize(item))
	}
	return a.check(pass, "toContain()", item, true)
}

// ToHaveLength checks the length of a string, in characters, or of an array.
func (a *Assertion) ToHaveLength(n int) bool {
	pass := false
	switch v := a.actual.(type) {
	case string:
		pass = assert.Len(silent{}, []rune(v), n)
	case []interface{}:
		pass = assert.Len(silent{}, v, n)
	}
	return a.check(pass, "toHaveLength()", n, true)
}

// ToBeGreaterThan compares numbers.
func (a *Assertion) ToBeGreaterThan(n float64) bool {
	v, ok := jsvalue.Number(a.actual)
	return a.check(ok && assert.Greater(silent{}, v, n), "toBeGreaterThan()", n, true)
}

// ToBeLessThan compares numbers.
func (a *Assertion) ToBeLessThan(n float64) bool {
	v, ok := jsvalue.Number(a.actual)
	return a.check(ok && assert.Less(silent{}, v, n), "toBeLessThan()", n, true)
}

// ToMatch checks a string against a regular expression.
func (a *Assertion) ToMatch(pattern string) bool {
	s, ok := a.actual.(string)
	if !ok {
		return a.check(false, "toMatch()", pattern, true)
	}
	// assert.Regexp panics on a pattern that does not compile
	re, err := regexp.Compile(pattern)
	if err != nil {
		a.r.record(fmt.Sprintf("expect(received).toMatch() invalid pattern %q: %v", pattern, err))
		return false
	}
	return a.check(assert.Regexp(silent{}, re, s), "toMatch()", pattern, true)
}

func same(a, b interface{}) bool {
	if an, ok := jsvalue.Number(a); ok {
		bn, ok := jsvalue.Number(b)
		return ok && an == bn
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if n, ok := jsvalue.Number(v); ok {
		return n != 0 && n == n
	}
	return true
}

func show(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprintf("%v", v)
}
