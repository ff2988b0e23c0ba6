// internal/common/auth/auth_test.go
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"scholarship-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeycloakServer(t *testing.T, mappings *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/uni/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "svc-token", ExpiresIn: 300})
	})
	mux.HandleFunc("/realms/uni/protocol/openid-connect/token/introspect", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("token") != "good" {
			_, _ = w.Write([]byte(`{"active":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"active":true,"sub":"user-7","realm_access":{"roles":["offline_access","Director"]}}`))
	})
	mux.HandleFunc("/admin/realms/uni/roles/estudiante_becado", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"role-1","name":"estudiante_becado"}`))
	})
	mux.HandleFunc("/admin/realms/uni/users/user-7/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var roles []RealmRole
		require.NoError(t, json.NewDecoder(r.Body).Decode(&roles))
		assert.Equal(t, []RealmRole{{ID: "role-1", Name: "estudiante_becado"}}, roles)
		atomic.AddInt32(mappings, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/admin/realms/uni/users/user-7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"user-7","email":"ana@uni.edu","username":"ana","enabled":true}`))
	})
	return httptest.NewServer(mux)
}

func TestKeycloakClient_AssignRealmRole(t *testing.T) {
	var mappings int32
	srv := newKeycloakServer(t, &mappings)
	defer srv.Close()

	client := NewKeycloakClient(srv.URL, "uni", "workers", "secret")
	require.NoError(t, client.AssignRealmRole(context.Background(), "user-7", "estudiante_becado"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&mappings))
}

func TestKeycloakClient_AssignRealmRole_UnknownRole(t *testing.T) {
	var mappings int32
	srv := newKeycloakServer(t, &mappings)
	defer srv.Close()

	client := NewKeycloakClient(srv.URL, "uni", "workers", "secret")
	err := client.AssignRealmRole(context.Background(), "user-7", "missing")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrResourceNotFound))
	assert.Zero(t, atomic.LoadInt32(&mappings))
}

func TestKeycloakClient_GetUser(t *testing.T) {
	var mappings int32
	srv := newKeycloakServer(t, &mappings)
	defer srv.Close()

	client := NewKeycloakClient(srv.URL, "uni", "workers", "secret")
	user, err := client.GetUser(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, "ana@uni.edu", user.Email)
}

func TestActorResolver(t *testing.T) {
	var mappings int32
	srv := newKeycloakServer(t, &mappings)
	defer srv.Close()

	resolver := NewActorResolver(NewKeycloakClient(srv.URL, "uni", "workers", "secret"))
	ctx := context.Background()

	t.Run("explicit actor", func(t *testing.T) {
		actor, err := resolver.Resolve(ctx, JobIdentity{Actor: &Actor{ID: "u1", Role: "admin"}})
		require.NoError(t, err)
		assert.Equal(t, Actor{ID: "u1", Role: RoleAdmin}, actor)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, JobIdentity{Actor: &Actor{ID: "u1", Role: "janitor"}})
		assert.True(t, stderrors.Is(err, errors.ErrForbidden))
	})

	t.Run("token introspection", func(t *testing.T) {
		actor, err := resolver.Resolve(ctx, JobIdentity{AccessToken: "good"})
		require.NoError(t, err)
		assert.Equal(t, Actor{ID: "user-7", Role: RoleDirector}, actor)
	})

	t.Run("inactive token", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, JobIdentity{AccessToken: "stale"})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAuthentication, errors.As(err).Code)
	})

	t.Run("nothing supplied", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, JobIdentity{})
		assert.Equal(t, errors.ErrCodeAuthentication, errors.As(err).Code)
	})
}

func TestRequireRoleAndOwner(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{ID: "stu-1", Role: RoleApplicant})

	_, err := RequireRole(ctx, RoleAdmin, RoleDirector)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	actor, err := RequireOwner(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", actor.ID)

	_, err = RequireOwner(ctx, "stu-2")
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	_, err = RequireRole(context.Background(), RoleAdmin)
	assert.Equal(t, errors.ErrCodeAuthentication, errors.As(err).Code)
}
