package cache

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

func itemFactory(raw json.RawMessage) (*item, error) {
	var it item
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func TestAddReplacesWithoutMerging(t *testing.T) {
	s := New(itemFactory, 0)

	_, err := s.Add("k", json.RawMessage(`{"id":"k","name":"a","tag":"first"}`))
	require.NoError(t, err)
	_, err = s.Add("k", json.RawMessage(`{"id":"k","name":"b"}`))
	require.NoError(t, err)

	require.Equal(t, 1, s.Len())
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", got.Name)
	assert.Empty(t, got.Tag, "second payload must fully replace the first")
}

func TestCapacityRejectsNewKeys(t *testing.T) {
	s := New(itemFactory, 2)

	_, err := s.Add("a", json.RawMessage(`{"id":"a"}`))
	require.NoError(t, err)
	_, err = s.Add("b", json.RawMessage(`{"id":"b"}`))
	require.NoError(t, err)

	_, err = s.Add("c", json.RawMessage(`{"id":"c"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))

	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Max)
	assert.Equal(t, "c", capErr.Key)

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Has("c"))
}

func TestCapacityAllowsReplacingExistingKey(t *testing.T) {
	s := New(itemFactory, 1)

	_, err := s.Add("a", json.RawMessage(`{"id":"a","name":"old"}`))
	require.NoError(t, err)
	_, err = s.Add("a", json.RawMessage(`{"id":"a","name":"new"}`))
	require.NoError(t, err)

	got, _ := s.Get("a")
	assert.Equal(t, "new", got.Name)
}

func TestValuesPreserveInsertionOrder(t *testing.T) {
	s := New(itemFactory, 0)
	for _, id := range []string{"k1", "k2", "k3"} {
		_, err := s.Add(id, json.RawMessage(`{"id":"`+id+`"}`))
		require.NoError(t, err)
	}

	var ids []string
	for _, v := range s.Values() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"k1", "k2", "k3"}, ids)

	// Replacing keeps the original slot.
	_, err := s.Add("k1", json.RawMessage(`{"id":"k1","name":"again"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3"}, s.Keys())
}

func TestRemove(t *testing.T) {
	s := New(itemFactory, 0)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(id, &item{ID: id}))
	}

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.False(t, s.Has("b"))
	assert.Equal(t, []string{"a", "c"}, s.Keys())

	_, ok := s.Get("b")
	assert.False(t, ok)
}

func TestAddFactoryError(t *testing.T) {
	s := New(itemFactory, 0)
	_, err := s.Add("x", json.RawMessage(`not json`))
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestValuesIsSnapshot(t *testing.T) {
	s := New(itemFactory, 0)
	require.NoError(t, s.Set("a", &item{ID: "a"}))

	snap := s.Values()
	require.NoError(t, s.Set("b", &item{ID: "b"}))

	assert.Len(t, snap, 1)
	assert.Len(t, s.Values(), 2)
}
