package claims

import "github.com/golang-jwt/jwt/v4"

// Auth is the claim set of tokens issued to admins.
type Auth struct {
	jwt.RegisteredClaims
	Name    string `json:"name"`
	AdminID int    `json:"admin_id"`
}
