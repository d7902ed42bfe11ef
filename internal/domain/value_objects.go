package domain

import (
	"regexp"
	"strings"
)

// ============================================================================
// Value Objects
// ============================================================================

var (
	pageNamePattern     = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?\.html$`)
	providerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
)

// PageName is a validated page file name such as "profile.html"
type PageName struct {
	value string
}

// NewPageName validates a page name. Only lowercase names ending in .html
// are accepted so names can never leave the pages directory.
func NewPageName(name string) (*PageName, error) {
	if name == "" {
		return nil, &DomainError{
			Code:    ErrPageNotFound.Code,
			Message: "page name cannot be empty",
		}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return nil, &DomainError{
			Code:    ErrPageNotFound.Code,
			Message: "page name cannot contain path separators",
		}
	}
	if len(name) > 64 || !pageNamePattern.MatchString(name) {
		return nil, &DomainError{
			Code:    ErrPageNotFound.Code,
			Message: "page name must be lowercase alphanumeric with hyphens and end in .html",
		}
	}
	return &PageName{value: name}, nil
}

// String returns the string value of the page name
func (n *PageName) String() string {
	return n.value
}

// ProviderName is a federated provider identifier such as "github"
type ProviderName struct {
	value string
}

// NewProviderName validates the shape of a provider name. Whether the
// provider is enabled is decided by the identity provider.
func NewProviderName(name string) (*ProviderName, error) {
	if !providerNamePattern.MatchString(name) {
		return nil, &DomainError{
			Code:    ErrInvalidRequest.Code,
			Message: "invalid provider name",
		}
	}
	return &ProviderName{value: name}, nil
}

// String returns the string value of the provider name
func (n *ProviderName) String() string {
	return n.value
}
