package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Log_Since(t *testing.T) {
	testCases := []struct {
		name      string
		preFill   int
		markAfter int
		addAfter  int
		expectLen int
	}{
		{
			name:      "no entries added after mark",
			preFill:   2,
			markAfter: 2,
			addAfter:  0,
			expectLen: 0,
		},
		{
			name:      "entries added after mark",
			preFill:   1,
			markAfter: 1,
			addAfter:  3,
			expectLen: 3,
		},
		{
			name:      "mark at zero captures everything",
			preFill:   0,
			markAfter: 0,
			addAfter:  2,
			expectLen: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			l := NewLog()
			for i := 0; i < tc.preFill; i++ {
				l.Addf(SemanticError, "pre %d", i)
			}
			mark := l.Len()
			assert.Equal(tc.markAfter, mark)
			for i := 0; i < tc.addAfter; i++ {
				l.Addf(SemanticError, "post %d", i)
			}

			actual := l.Since(mark)
			assert.Len(actual, tc.expectLen)
		})
	}
}

func Test_Log_FirstOfKind(t *testing.T) {
	l := NewLog()
	l.Add(New(SemanticError, "first semantic"))
	l.Add(New(AttributeError, "first attribute"))
	l.Add(New(SemanticError, "second semantic"))

	assert := assert.New(t)

	found := l.FirstOfKind(SemanticError)
	assert.NotNil(found)
	assert.Equal("first semantic", found.Message)

	found = l.FirstOfKind(PpptError)
	assert.Nil(found)
}

func Test_Log_Reset(t *testing.T) {
	l := NewLog()
	l.Addf(SemanticError, "boom")
	assert.False(t, l.Empty())

	l.Reset()
	assert.True(t, l.Empty())
	assert.Equal(t, 0, l.Len())
}

func Test_Error_Error(t *testing.T) {
	testCases := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "no location",
			err:      New(SemanticError, "undefined rule %q", "foo"),
			expected: `SemanticError: undefined rule "foo"`,
		},
		{
			name:     "with location",
			err:      NewAt(SemanticError, Location{Line: 3, Column: 5}, "foo = bar", "undefined rule"),
			expected: "SemanticError at 3:5: undefined rule",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func Test_Error_FullMessage_rendersCaret(t *testing.T) {
	assert := assert.New(t)

	err := NewAt(SemanticError, Location{Line: 2, Column: 4}, "foo = %undefined", "undefined rule")
	full := err.FullMessage()

	assert.Contains(full, "foo = %undefined")
	assert.Contains(full, "   ^") // caret padded to column 4 (3 spaces then ^)
}

func Test_Error_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(EmitError, cause, "failed to emit")

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}
