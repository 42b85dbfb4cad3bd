package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryDefaultsToMixMode(t *testing.T) {
	env := newTestEnv(t)
	group := env.mustCreateGroup(t, "kb")

	result, err := env.queries.Query(context.Background(), group.ID, "what is this?", "")
	require.NoError(t, err)
	assert.Equal(t, "mix", result.Mode)
	assert.Equal(t, "what is this?", result.Query)
	assert.Equal(t, "stub answer", result.Response)
	assert.Equal(t, group.ID, result.GroupID)
	assert.Equal(t, "mix", env.stub.lastParams.Mode)
}

func TestQueryRejectsUnknownMode(t *testing.T) {
	env := newTestEnv(t)
	group := env.mustCreateGroup(t, "kb")

	_, err := env.queries.Query(context.Background(), group.ID, "q", "telepathic")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	env := newTestEnv(t)
	group := env.mustCreateGroup(t, "kb")

	_, err := env.queries.Query(context.Background(), group.ID, "", "mix")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQueryUnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.queries.Query(context.Background(), "missing", "q", "mix")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = env.queries.QueryStream(context.Background(), "missing", "q", "mix")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestQueryStreamDeliversChunks(t *testing.T) {
	env := newTestEnv(t)
	group := env.mustCreateGroup(t, "kb")
	env.stub.streamChunks = []string{"chunk1", "chunk2"}

	stream, err := env.queries.QueryStream(context.Background(), group.ID, "q", "hybrid")
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk)
	}
	assert.Equal(t, []string{"chunk1", "chunk2"}, got)
	assert.Equal(t, "hybrid", env.stub.lastParams.Mode)
}

func TestQueryEngineFailurePassesThrough(t *testing.T) {
	env := newTestEnv(t)
	group := env.mustCreateGroup(t, "kb")
	env.stub.queryErr = errors.New("model offline")

	_, err := env.queries.Query(context.Background(), group.ID, "q", "mix")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGroupNotFound)
}
