package domain

// Role distinguishes account owners from platform admins.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account that owns campaigns and locations.
type User struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
	Role                  Role   `json:"role"`
	CurrentSubscriptionID string `json:"currentSubscriptionId,omitempty"`
}
