// Command token issues a bearer token for local use and operations scripts.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/config"
)

func main() {
	var (
		id       = flag.Int64("id", 1, "user id placed in the subject claim")
		username = flag.String("username", "admin", "username")
		role     = flag.String("role", string(auth.RoleAdministrator), "administrator, super_user or normal_user")
		userType = flag.String("user-type", string(auth.UserTypeAdmin), "admin or member")
		memberID = flag.Int64("member-id", 0, "member id, required for member tokens")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Invalid token configuration: %v", err)
	}

	p := &auth.Principal{
		ID:       *id,
		Username: *username,
		Role:     auth.Role(*role),
		UserType: auth.UserType(*userType),
	}
	switch p.UserType {
	case auth.UserTypeMember:
		if *memberID <= 0 {
			log.Fatal("-member-id is required for member tokens")
		}
		p.MemberID = memberID
	case auth.UserTypeAdmin:
		switch p.Role {
		case auth.RoleAdministrator, auth.RoleSuperUser, auth.RoleNormalUser:
		default:
			log.Fatalf("Unknown role %q", *role)
		}
	default:
		log.Fatalf("Unknown user type %q", *userType)
	}

	token, err := tokens.Issue(p)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
