package storage

// User is a single row from the users table.
type User struct {
	ID       int64
	Username string
	Name     string
	Token    string
}

// Article carries an article row together with every related item
// attached to it. Related is never nil after a read: an article
// without attachments gets an empty slice.
type Article struct {
	ID      int64
	Name    string
	UserID  int64
	Related []Related
}

// Related is one attachment of an article. The row id stays internal
// to the storage layer and is never exposed.
type Related struct {
	Type    string
	URL     string
	Content string
}

// UserProfile is the nested read representation of a user: the user
// row plus a reference to every article the user owns.
type UserProfile struct {
	ID       int64
	Username string
	Name     string
	Articles []ArticleRef
}

// ArticleRef is the shallow article reference inside a UserProfile.
type ArticleRef struct {
	ID   int64
	Name string
}

// UserUpdate holds the optionally-present fields of a user update.
// A nil pointer means the caller did not supply the field; a pointer
// to the empty string is a real value and clears the column.
type UserUpdate struct {
	Username *string
	Name     *string
	Token    *string
}

// Empty reports whether no field was supplied at all.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Name == nil && u.Token == nil
}
