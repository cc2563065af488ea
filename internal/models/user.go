package models

// User is a message author. Username and discriminator are updated in place
// when a later observation disagrees with the stored value; everything else
// is first-seen-wins.
type User struct {
	ID            int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Bot           bool   `json:"bot"`
	System        bool   `json:"system"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// DisplayName renders the classic name#discriminator tag used in reports.
func (u User) DisplayName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}
