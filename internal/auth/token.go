package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ExtractClaimsFromJWT parses the subject and realm roles out of a JWT without
// validating its signature. Only the dev-mode middleware path uses this; in
// production the OIDC verifier checks the signature first.
func ExtractClaimsFromJWT(tokenString string) (string, []string, error) {
	if tokenString == "" {
		return "", nil, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", nil, errors.New("subject claim not found in token")
	}

	var roles []string
	if realmAccess, ok := claims["realm_access"].(map[string]interface{}); ok {
		if rawRoles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, r := range rawRoles {
				if role, ok := r.(string); ok {
					roles = append(roles, role)
				}
			}
		}
	}

	return sub, roles, nil
}
