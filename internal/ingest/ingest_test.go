package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/llm"
	"github.com/fastertools/devlaunch/internal/storage"
)

type stubBackend struct {
	response string
	err      error
	system   string
	prompt   string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.response, s.err
}

func TestParseResponse(t *testing.T) {
	d, err := ParseResponse("BODY---END_METADATA---\ntags: [x]\n")
	require.NoError(t, err)
	assert.Equal(t, "BODY", d.Body)
	assert.Equal(t, []string{"x"}, d.Metadata.Tags)
}

func TestParseResponseSplitsOnFirstMarker(t *testing.T) {
	d, err := ParseResponse("services: {}\n---END_METADATA---\ndescription: \"a ---END_METADATA--- b\"\n")
	require.NoError(t, err)
	assert.Equal(t, "services: {}", d.Body)
	assert.Equal(t, "a ---END_METADATA--- b", d.Metadata.Description)
}

func TestParseResponseErrorsAreDistinct(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  error
		other error
	}{
		{"missing marker", "services: {}\ntags: [x]", ErrMissingSeparator, ErrInvalidMetadata},
		{"malformed yaml", "BODY---END_METADATA---\ntags: [x", ErrInvalidMetadata, ErrMissingSeparator},
		{"empty metadata", "BODY---END_METADATA---\n", ErrInvalidMetadata, ErrMissingSeparator},
		{"empty body", "  ---END_METADATA---\ntags: [x]", ErrEmptyBody, ErrInvalidMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, errors.Is(err, tt.other))
			assert.ErrorIs(t, err, apperr.ErrIngestion)
		})
	}
}

func TestIngestPersistsEntry(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	backend := &stubBackend{response: `services:
  cache:
    image: redis:7
    command: redis-server --requirepass {{ REDIS_PASSWORD }}
---END_METADATA---
name: Redis Cache
description: Redis with a password
required_inputs: [REDIS_PASSWORD]
tags: [redis, docker]
`}

	p := New(backend, store, WithPrefix("generated"))
	res, err := p.Ingest(context.Background(), "a redis cache")
	require.NoError(t, err)

	assert.Equal(t, SystemPrompt, backend.system)
	assert.Equal(t, "a redis cache", backend.prompt)
	assert.False(t, res.Untagged)
	assert.Equal(t, "redis-cache", res.Entry.Name)
	assert.Equal(t, "generated/redis-cache/template.yaml", res.Entry.Location)
	assert.True(t, res.Entry.Tags.Equal(catalog.NewTagSet("redis", "docker")))
	assert.Equal(t, []string{"generated/redis-cache/docker-compose.j2", "generated/redis-cache/template.yaml"}, res.Keys)

	body, err := store.Get(context.Background(), "generated/redis-cache/docker-compose.j2")
	require.NoError(t, err)
	assert.Contains(t, string(body), "{{ REDIS_PASSWORD }}")

	metaData, err := store.Get(context.Background(), "generated/redis-cache/template.yaml")
	require.NoError(t, err)
	meta, err := catalog.ParseMetadata(metaData)
	require.NoError(t, err)
	assert.Equal(t, "redis-cache", meta.Name)
	assert.Equal(t, []string{"REDIS_PASSWORD"}, meta.RequiredInputs)
}

func TestIngestNameCollisionGetsSuffix(t *testing.T) {
	store := storage.NewMemoryStore(map[string]string{"redis/template.yaml": "tags: [redis]"})
	backend := &stubBackend{response: "BODY---END_METADATA---\nname: redis\ntags: [redis]"}

	res, err := New(backend, store).Ingest(context.Background(), "redis")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Entry.Name, "redis-"))
	assert.Len(t, res.Entry.Name, len("redis-")+8)
}

func TestIngestWithoutNameUsesPromptSlug(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	backend := &stubBackend{response: "BODY---END_METADATA---\ndescription: x"}

	res, err := New(backend, store).Ingest(context.Background(), "Kafka with Zookeeper, please now")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Entry.Name, "kafka-with-zookeeper-please-"), res.Entry.Name)
	assert.True(t, res.Untagged)
	assert.Len(t, store.Keys(), 2)
}

func TestIngestBackendFailure(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	backend := &stubBackend{err: apperr.New(apperr.KindBackend, "llm.stub", "request failed")}

	_, err := New(backend, store).Ingest(context.Background(), "redis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, apperr.ErrIngestion)
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Empty(t, store.Keys())
}

func TestIngestParseFailureStoresNothing(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	backend := &stubBackend{response: "no marker here"}

	_, err := New(backend, store).Ingest(context.Background(), "redis")
	assert.ErrorIs(t, err, ErrMissingSeparator)
	assert.Empty(t, store.Keys())
}

func TestIngestEmptyPrompt(t *testing.T) {
	backend := &stubBackend{}
	_, err := New(backend, storage.NewMemoryStore(nil)).Ingest(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrInput)
	assert.Empty(t, backend.prompt)
}

func TestNewFromConfigMisconfigured(t *testing.T) {
	_, err := NewFromConfig(llm.Config{Provider: "openai"}, storage.NewMemoryStore(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Contains(t, err.Error(), "api_key")
	assert.Equal(t, apperr.KindIngestion, apperr.KindOf(err))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "redis-cache", Slug("  Redis Cache! "))
	assert.Equal(t, "pg-16", Slug("pg_16"))
	assert.Equal(t, "", Slug("---"))
}
