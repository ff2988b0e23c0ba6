// internal/common/auth/actor.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"scholarship-workers/internal/common/errors"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDirector  Role = "DIRECTOR"
	RoleApplicant Role = "APPLICANT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleApplicant:
		return true
	}
	return false
}

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// RequireRole returns the context actor when it holds one of the roles.
func RequireRole(ctx context.Context, roles ...Role) (Actor, error) {
	actor, ok := FromContext(ctx)
	if !ok || actor.ID == "" {
		return Actor{}, errors.NewAuthenticationError("no actor in request context")
	}
	for _, r := range roles {
		if actor.Role == r {
			return actor, nil
		}
	}
	return actor, errors.NewForbiddenError(fmt.Sprintf("role %s may not perform this operation", actor.Role))
}

// RequireOwner allows the applicant who owns a resource.
func RequireOwner(ctx context.Context, ownerID string) (Actor, error) {
	actor, err := RequireRole(ctx, RoleApplicant)
	if err != nil {
		return actor, err
	}
	if actor.ID != ownerID {
		return actor, errors.NewForbiddenError("applicant does not own this application")
	}
	return actor, nil
}

// JobIdentity is the identity part of job variables. Embed it in worker inputs.
type JobIdentity struct {
	Actor       *Actor `json:"actor,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

func (j JobIdentity) Identity() JobIdentity { return j }

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)
}

// realmRoles maps Keycloak realm roles onto actor roles, strongest first.
var realmRoles = []struct {
	role  Role
	names []string
}{
	{RoleAdmin, []string{"admin", "administrador"}},
	{RoleDirector, []string{"director", "analista"}},
	{RoleApplicant, []string{"applicant", "estudiante", "estudiante_postulante", "estudiante_becado"}},
}

// ActorResolver turns job identity into an Actor, introspecting access tokens when no actor is given.
type ActorResolver struct {
	tokens TokenValidator
}

func NewActorResolver(tokens TokenValidator) *ActorResolver {
	return &ActorResolver{tokens: tokens}
}

func (r *ActorResolver) Resolve(ctx context.Context, id JobIdentity) (Actor, error) {
	if id.Actor != nil && id.Actor.ID != "" {
		actor := Actor{ID: id.Actor.ID, Role: Role(strings.ToUpper(string(id.Actor.Role)))}
		if !actor.Role.Valid() {
			return Actor{}, errors.NewForbiddenError(fmt.Sprintf("unknown role %q", id.Actor.Role))
		}
		return actor, nil
	}

	if id.AccessToken == "" || r == nil || r.tokens == nil {
		return Actor{}, errors.NewAuthenticationError("job carries neither actor nor access token")
	}

	info, err := r.tokens.ValidateToken(ctx, id.AccessToken)
	if err != nil {
		return Actor{}, err
	}
	role, ok := roleFromRealm(info.RealmAccess.Roles)
	if !ok {
		return Actor{}, errors.NewForbiddenError("token carries no scholarship role")
	}
	return Actor{ID: info.Sub, Role: role}, nil
}

func roleFromRealm(names []string) (Role, bool) {
	held := make(map[string]bool, len(names))
	for _, n := range names {
		held[strings.ToLower(n)] = true
	}
	for _, candidate := range realmRoles {
		for _, n := range candidate.names {
			if held[n] {
				return candidate.role, true
			}
		}
	}
	return "", false
}
