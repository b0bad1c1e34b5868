package model

import "strings"

// Contact is what a property owner exposes to subscribed users.
type Contact struct {
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PrimaryPhone   string `json:"primaryPhone"`
	SecondaryPhone string `json:"secondaryPhone,omitempty"`
	Masked         bool   `json:"masked"`
}

func ContactOf(u *User) Contact {
	return Contact{
		UserID:         u.ID,
		Name:           u.Name,
		Email:          u.Email,
		PrimaryPhone:   u.Phone.Primary,
		SecondaryPhone: u.Phone.Secondary,
	}
}

// Mask returns a copy safe to show without a subscription.
func (c Contact) Mask() Contact {
	c.Email = MaskEmail(c.Email)
	c.PrimaryPhone = MaskPhone(c.PrimaryPhone)
	c.SecondaryPhone = MaskPhone(c.SecondaryPhone)
	c.Masked = true
	return c
}

// MaskEmail keeps the first rune of the local part and of the domain label:
// john.doe@example.com -> j***@e***.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" || domainPart == "" {
		return email
	}
	label, ext, _ := strings.Cut(domainPart, ".")
	return maskHead(local) + "@" + maskHead(label) + "." + ext
}

func maskHead(s string) string {
	r := []rune(s)
	if len(r) <= 1 {
		return s
	}
	n := len(r) - 1
	if n > 3 {
		n = 3
	}
	return string(r[0]) + strings.Repeat("*", n)
}

// MaskPhone keeps the first and last three digits: +91 98765 43210 -> 919****210
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 6 {
		return phone
	}
	n := len(digits) - 6
	if n > 4 {
		n = 4
	}
	return digits[:3] + strings.Repeat("*", n) + digits[len(digits)-3:]
}
