package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	notFound := NotFound("book %s not found", "42")
	rule := RuleViolation(MsgBookNotAvailable)

	require.True(t, errors.Is(notFound, ErrNotFound))
	require.False(t, errors.Is(notFound, ErrRuleViolation))
	require.True(t, errors.Is(rule, ErrRuleViolation))
	require.True(t, errors.Is(errors.Wrap(rule, "borrow"), ErrRuleViolation))
	require.True(t, errors.Is(rule, RuleViolation(MsgBookNotAvailable)))
	require.False(t, errors.Is(rule, RuleViolation(MsgMemberLimitReached)))

	require.Equal(t, KindNotFound, KindOf(notFound))
	require.Equal(t, KindRuleViolation, KindOf(errors.Wrap(rule, "tx")))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, "book 42 not found", notFound.Error())
}
