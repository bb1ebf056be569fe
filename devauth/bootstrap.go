package devauth

import (
	"fmt"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

const (
	DemoCompanyID    = "company-1"
	DemoShopID       = "shop-1"
	DemoUserPassword = "Demo12345"
)

type seedUser struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      users.RoleType
	companyID string
	shopID    string
}

// InitialiseSystem seeds the admin account from config and, in DEV, one demo user per role.
// Existing accounts are left alone.
func (s *Server) InitialiseSystem() error {
	seeds := []seedUser{
		{
			email:     s.config.GetSeedAdminEmail(),
			password:  s.config.GetSeedAdminPassword(),
			firstName: "System",
			lastName:  "Administrator",
			role:      users.RoleAdmin,
		},
	}
	if s.env == "DEV" {
		seeds = append(seeds,
			seedUser{email: "manager@sdt.com", password: DemoUserPassword, firstName: "Mona", lastName: "Manager", role: users.RoleManager, companyID: DemoCompanyID},
			seedUser{email: "assistant@sdt.com", password: DemoUserPassword, firstName: "Sam", lastName: "Assistant", role: users.RoleShopAssistant, companyID: DemoCompanyID, shopID: DemoShopID},
			seedUser{email: "driver@sdt.com", password: DemoUserPassword, firstName: "Dana", lastName: "Driver", role: users.RoleDeliveryGuy, companyID: DemoCompanyID},
		)
	}

	for _, seed := range seeds {
		created, err := s.seed(seed)
		if err != nil {
			return err
		}
		if created {
			s.logger.Info().Str("email", seed.email).Str("role", string(seed.role)).Msg("seeded user")
		}
	}
	return nil
}

func (s *Server) seed(seed seedUser) (bool, error) {
	if _, err := s.users.GetByEmail(seed.email); err == nil {
		return false, nil
	} else if !errors.Is(err, errors.ErrUserNotFound) {
		return false, errors.Wrapf(err, "look up %s", seed.email)
	}

	user, err := users.New(seed.email, seed.password, seed.role)
	if err != nil {
		return false, fmt.Errorf("failed to create seed user %s: %w", seed.email, err)
	}
	user.FirstName = seed.firstName
	user.LastName = seed.lastName
	user.CompanyID = seed.companyID
	user.ShopID = seed.shopID

	if err := s.users.Upsert(user); err != nil {
		return false, fmt.Errorf("failed to store seed user %s: %w", seed.email, err)
	}
	return true, nil
}
