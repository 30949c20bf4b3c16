// Thinkstream CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/thinkstream/internal/dagger"
)

// Thinkstream is the main module for the thinkstream CI/CD pipeline
type Thinkstream struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Thinkstream CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Thinkstream {
	return &Thinkstream{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
func (t *Thinkstream) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", t.Source)
}

// Test runs the thinkstream unit tests via "go test"
func (t *Thinkstream) Test(ctx context.Context) (string, error) {
	return t.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestIntegration runs the tests against live Redis and Qdrant services.
func (t *Thinkstream) TestIntegration(ctx context.Context) (string, error) {
	redis := dag.Container().
		From("redis:7-alpine").
		WithExposedPort(6379).
		AsService()

	qdrant := dag.Container().
		From("qdrant/qdrant:latest").
		WithExposedPort(6334).
		AsService()

	return t.goContainer().
		WithServiceBinding("redis", redis).
		WithServiceBinding("qdrant", qdrant).
		WithEnvVariable("THINKSTREAM_TEST_REDIS_ADDR", "redis:6379").
		WithEnvVariable("THINKSTREAM_TEST_QDRANT_HOST", "qdrant").
		WithEnvVariable("THINKSTREAM_TEST_QDRANT_PORT", "6334").
		WithExec([]string{"go", "test", "-v", "./pkg/session/...", "./pkg/vector/..."}).
		Stdout(ctx)
}
