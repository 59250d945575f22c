package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "fmt"                    // formatting claim values into the actor id
    "net/http"               // HTTP status codes for responses
    "strings"                // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// SessionAuth returns an Echo middleware that validates a Bearer access
// token issued by the identity collaborator and injects the token's subject
// into the request context as the acting user.  The provided secret must
// match the one used when issuing tokens.  The refund path is the only
// route group that wraps itself in this middleware: refunds require a
// verified caller identity, everything else in this subsystem does not.
// Handlers read the actor via ActorID(c).
func SessionAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error": echo.Map{"kind": "auth", "message": "missing bearer token"},
                })
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse with HS256 and our secret; reject any other signing
            // method so an attacker cannot downgrade the algorithm.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error": echo.Map{"kind": "auth", "message": "invalid token"},
                })
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error": echo.Map{"kind": "auth", "message": "invalid claims"},
                })
            }

            // Store the subject as the actor identifier.  Numeric subjects
            // arrive as float64 from the JSON decoder, so render through
            // fmt to keep a stable string form.
            sub, ok := claims["sub"]
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error": echo.Map{"kind": "auth", "message": "missing subject claim"},
                })
            }
            c.Set("actor_id", fmt.Sprintf("%v", sub))
            return next(c)
        }
    }
}

// ActorID extracts the verified actor identifier stored by SessionAuth.
// It returns the empty string when the request carried no valid session.
func ActorID(c echo.Context) string {
    if v, ok := c.Get("actor_id").(string); ok {
        return v
    }
    return ""
}
