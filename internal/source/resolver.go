package source

import (
	"path/filepath"
	"strings"
)

// Role is the logical dataset a source file feeds
type Role string

const (
	RoleProducts    Role = "products"
	RolePatent      Role = "patent"
	RoleExclusivity Role = "exclusivity"
)

// Roles lists every role in processing order
var Roles = []Role{RoleProducts, RolePatent, RoleExclusivity}

const (
	productsFile    = "products.txt"
	patentFile      = "patent.txt"
	exclusivityFile = "exclusivity.txt"
)

// productParts is the split product layout used by older drops, in load order
var productParts = []string{"rx.txt", "otc.txt", "disc.txt"}

// FileRoleMap maps each role to its ordered source files. Every role key is
// present; only products is guaranteed to be non-empty.
type FileRoleMap map[Role][]string

// ResolveRoles assigns extracted files to roles by case-insensitive base name.
// products.txt wins over the rx/otc/disc split. When two files share a base
// name the later one is used.
func ResolveRoles(files []string) (FileRoleMap, error) {
	byName := make(map[string]string, len(files))
	for _, f := range files {
		byName[strings.ToLower(filepath.Base(f))] = f
	}

	roles := FileRoleMap{
		RoleProducts:    nil,
		RolePatent:      nil,
		RoleExclusivity: nil,
	}

	if p, ok := byName[productsFile]; ok {
		roles[RoleProducts] = []string{p}
	} else {
		for _, part := range productParts {
			if p, ok := byName[part]; ok {
				roles[RoleProducts] = append(roles[RoleProducts], p)
			}
		}
	}
	if len(roles[RoleProducts]) == 0 {
		return nil, newError(SchemaError, "resolve", "", "Missing required product files", nil)
	}

	if p, ok := byName[patentFile]; ok {
		roles[RolePatent] = []string{p}
	}
	if p, ok := byName[exclusivityFile]; ok {
		roles[RoleExclusivity] = []string{p}
	}

	return roles, nil
}

// Missing returns the optional roles that resolved to no file
func (m FileRoleMap) Missing() []Role {
	var missing []Role
	for _, r := range Roles {
		if len(m[r]) == 0 {
			missing = append(missing, r)
		}
	}
	return missing
}

// Files returns every resolved file in role order
func (m FileRoleMap) Files() []string {
	var files []string
	for _, r := range Roles {
		files = append(files, m[r]...)
	}
	return files
}

// MarketingStatus hints the marketing category encoded by a split product
// file name: otc.txt is OTC, disc.txt is DISCN, anything else RX.
func MarketingStatus(path string) string {
	switch strings.ToLower(filepath.Base(path)) {
	case "otc.txt":
		return "OTC"
	case "disc.txt":
		return "DISCN"
	default:
		return "RX"
	}
}

