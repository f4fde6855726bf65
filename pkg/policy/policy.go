package policy

import (
	"regexp"
	"strings"
	"sync"
)

// Role is the closed set of grantable roles.
type Role int

const (
	RoleAdmin Role = iota
	RolePowerUser
	RoleWhitelisted
	RoleBlacklisted
	RoleBlockedURL
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePowerUser:
		return "power_user"
	case RoleWhitelisted:
		return "whitelisted"
	case RoleBlacklisted:
		return "blacklisted"
	case RoleBlockedURL:
		return "blocked_url"
	}
	return "unknown"
}

// Capability describes what a role accepts as a grantee and any side effect
// to run when a grant is made. The table is built once in New and never
// mutated afterwards.
type Capability struct {
	Validate func(entity string) bool
	OnGrant  func(entity string)
}

// reservedWords are path segments the application claims for itself; none of
// them may ever be assigned as a short key.
var reservedWords = []string{
	"add", "login", "logout", "delete", "admin", "stats", "qr",
	"shrunk-login", "roles", "dev-user-login", "dev-admin-login",
	"dev-power-login", "unauthorized", "link-visits-csv",
	"search-visits-csv", "useragent-stats", "referer-stats",
	"monthly-visits", "edit",
}

// Config seeds a Policy from static configuration. Grants made at runtime
// via Grant come on top of these.
type Config struct {
	Admins         []string
	PowerUsers     []string
	BlockedDomains []string
}

// Policy answers the authorization and naming questions the link services
// ask: is this key reserved, is this destination blocked, does this user
// hold a given role. It replaces ambient global role state with a value
// passed explicitly into the components that need it.
type Policy struct {
	reserved map[string]struct{}
	caps     map[Role]Capability

	mu     sync.RWMutex
	grants map[Role]map[string]struct{}
}

func New(cfg Config) *Policy {
	p := &Policy{
		reserved: make(map[string]struct{}, len(reservedWords)),
		grants:   make(map[Role]map[string]struct{}),
	}
	for _, w := range reservedWords {
		p.reserved[w] = struct{}{}
	}

	notEmpty := func(e string) bool { return e != "" }
	p.caps = map[Role]Capability{
		RoleAdmin:       {Validate: notEmpty},
		RolePowerUser:   {Validate: notEmpty},
		RoleWhitelisted: {Validate: notEmpty},
		RoleBlacklisted: {Validate: notEmpty},
		// Blocked URLs are stored by registrable domain so one grant covers
		// every subdomain and path.
		RoleBlockedURL: {Validate: func(e string) bool { return Domain(e) != "" }},
	}

	for _, a := range cfg.Admins {
		p.grant(RoleAdmin, a)
	}
	for _, u := range cfg.PowerUsers {
		p.grant(RolePowerUser, u)
	}
	for _, d := range cfg.BlockedDomains {
		p.grant(RoleBlockedURL, Domain(d))
	}
	return p
}

// IsReserved reports whether the key is a reserved word.
func (p *Policy) IsReserved(key string) bool {
	_, ok := p.reserved[strings.ToLower(key)]
	return ok
}

// IsDomainBlocked reports whether the long URL's registrable domain has been
// blocked by an administrator.
func (p *Policy) IsDomainBlocked(longURL string) bool {
	return p.HasRole(RoleBlockedURL, Domain(longURL))
}

func (p *Policy) IsAdmin(user string) bool {
	return p.HasRole(RoleAdmin, user)
}

func (p *Policy) IsPowerUser(user string) bool {
	return p.HasRole(RolePowerUser, user)
}

// IsPrivileged reports whether the user may rename link keys.
func (p *Policy) IsPrivileged(user string) bool {
	return p.IsAdmin(user) || p.IsPowerUser(user)
}

// Grant gives entity the role. It reports whether the grant was accepted;
// invalid entities are rejected by the role's capability record.
func (p *Policy) Grant(role Role, entity string) bool {
	c, ok := p.caps[role]
	if !ok || !c.Validate(entity) {
		return false
	}
	if role == RoleBlockedURL {
		entity = Domain(entity)
	}
	if p.grant(role, entity) && c.OnGrant != nil {
		c.OnGrant(entity)
	}
	return true
}

func (p *Policy) grant(role Role, entity string) bool {
	if entity == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.grants[role]
	if !ok {
		set = make(map[string]struct{})
		p.grants[role] = set
	}
	if _, dup := set[entity]; dup {
		return false
	}
	set[entity] = struct{}{}
	return true
}

func (p *Policy) Revoke(role Role, entity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.grants[role]; ok {
		delete(set, entity)
	}
}

func (p *Policy) HasRole(role Role, entity string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.grants[role][entity]
	return ok
}

var domainRe = regexp.MustCompile(`([a-z\-0-9]+\.[a-z\-0-9]+)$`)

// Domain extracts the registrable domain from a URL, e.g.
// "https://memes.example.co/x?y=1" becomes "example.co". Subdomains are
// stripped so a block on a domain covers all of them.
func Domain(longURL string) string {
	rest := longURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.ToLower(rest)
	if m := domainRe.FindString(rest); m != "" {
		return m
	}
	return rest
}
