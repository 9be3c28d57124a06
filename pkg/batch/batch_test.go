package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_IsolatesItemFailures(t *testing.T) {
	items := []string{"a", "b", "c"}
	var seen []string

	res := Run(context.Background(), items, func(ctx context.Context, item string) error {
		seen = append(seen, item)
		if item == "b" {
			return errors.New("boom")
		}
		return nil
	})

	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 1, res.Failed[0].Index)
	require.Contains(t, res.Errors()[0], "boom")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []int{1, 2, 3, 4}
	var processed int

	Run(ctx, items, func(ctx context.Context, item int) error {
		processed++
		if item == 2 {
			cancel()
		}
		return nil
	})

	require.Equal(t, 2, processed)
}

func TestRun_EmptyInput(t *testing.T) {
	res := Run(context.Background(), nil, func(ctx context.Context, item int) error {
		t.Fatal("must not be called")
		return nil
	})
	require.Equal(t, 0, res.Succeeded)
	require.Empty(t, res.Failed)
	require.Empty(t, res.Errors())
}
