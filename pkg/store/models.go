package store

// The record structs below declare the simulated registry's schema. All
// timestamps are stored as RFC 3339 strings so they compare the same way
// they appear on the wire. Relationship requirements are enforced by the
// Store's create methods, not by the database.

// Crate is a publishable package. Its name is the immutable identity key
// used in URLs; the numeric id only orders creation.
type Crate struct {
	ID              int64  `gorm:"primaryKey;column:id"`
	Name            string `gorm:"column:name;uniqueIndex;not null"`
	Description     string `gorm:"column:description"`
	Downloads       int    `gorm:"column:downloads"`
	RecentDownloads int    `gorm:"column:recent_downloads"`
	Homepage        *string
	Documentation   *string
	Repository      *string
	Badges          StringList        `gorm:"column:badges;type:text"`
	ExtraDownloads  ExtraDownloadList `gorm:"column:extra_downloads;type:text"`
	CreatedAt       string            `gorm:"column:created_at"`
	UpdatedAt       string            `gorm:"column:updated_at"`

	Versions   []Version  `gorm:"foreignKey:CrateID"`
	Categories []Category `gorm:"many2many:crate_categories"`
	Keywords   []Keyword  `gorm:"many2many:crate_keywords"`
}

// Version belongs to exactly one Crate.
type Version struct {
	ID            int64  `gorm:"primaryKey;column:id"`
	CrateID       int64  `gorm:"column:crate_id;index;not null"`
	Num           string `gorm:"column:num"`
	Yanked        bool   `gorm:"column:yanked"`
	YankMessage   *string
	License       string `gorm:"column:license"`
	Downloads     int    `gorm:"column:downloads"`
	CrateSize     int    `gorm:"column:crate_size"`
	Readme        *string
	RustVersion   *string
	PublishedByID *int64
	PublishedBy   *User       `gorm:"foreignKey:PublishedByID"`
	Features      JSONMap     `gorm:"column:features;type:text"`
	Linecounts    *Linecounts `gorm:"column:linecounts;type:text"`
	TrustpubData  JSONMap     `gorm:"column:trustpub_data;type:text"`
	CreatedAt     string      `gorm:"column:created_at"`
	UpdatedAt     string      `gorm:"column:updated_at"`

	Crate *Crate `gorm:"foreignKey:CrateID"`
}

// Dependency links a consuming Version to the Crate it depends on.
// Dependencies are optional unless Required is set; the wire format exposes
// the inverted `optional` flag.
type Dependency struct {
	ID              int64      `gorm:"primaryKey;column:id"`
	CrateID         int64      `gorm:"column:crate_id;index;not null"`
	VersionID       int64      `gorm:"column:version_id;index;not null"`
	Req             string     `gorm:"column:req"`
	Required        bool       `gorm:"column:required"`
	DefaultFeatures bool       `gorm:"column:default_features"`
	Features        StringList `gorm:"column:features;type:text"`
	Kind            string     `gorm:"column:kind"`
	Target          *string

	Crate   *Crate   `gorm:"foreignKey:CrateID"`
	Version *Version `gorm:"foreignKey:VersionID"`
}

// User is a registry account.
type User struct {
	ID                   int64  `gorm:"primaryKey;column:id"`
	Login                string `gorm:"column:login;uniqueIndex"`
	Name                 string `gorm:"column:name"`
	Avatar               string `gorm:"column:avatar"`
	URL                  string `gorm:"column:url"`
	IsAdmin              bool   `gorm:"column:is_admin"`
	PublishNotifications bool   `gorm:"column:publish_notifications"`

	Emails         []Email `gorm:"foreignKey:UserID"`
	FollowedCrates []Crate `gorm:"many2many:followed_crates"`
}

// Email belongs to a User. The handler layer keeps two invariants that the
// schema does not: a user always retains at least one email, and the
// notification-sending email cannot be deleted directly.
type Email struct {
	ID                int64  `gorm:"primaryKey;column:id"`
	UserID            int64  `gorm:"column:user_id;index;not null"`
	Address           string `gorm:"column:address"`
	Verified          bool   `gorm:"column:verified"`
	Primary           bool   `gorm:"column:is_primary"`
	SendNotifications bool   `gorm:"column:send_notifications"`
	Token             *string
}

// Team is a GitHub-style org team. It relates to crates only via ownership.
type Team struct {
	ID     int64  `gorm:"primaryKey;column:id"`
	Name   string `gorm:"column:name"`
	Org    string `gorm:"column:org"`
	Login  string `gorm:"column:login;uniqueIndex"`
	Avatar string `gorm:"column:avatar"`
	URL    string `gorm:"column:url"`
}

// CrateOwnership links a Crate to exactly one of {User, Team}.
type CrateOwnership struct {
	ID                 int64  `gorm:"primaryKey;column:id"`
	CrateID            int64  `gorm:"column:crate_id;index;not null"`
	UserID             *int64 `gorm:"column:user_id"`
	TeamID             *int64 `gorm:"column:team_id"`
	EmailNotifications bool   `gorm:"column:email_notifications"`

	Crate *Crate `gorm:"foreignKey:CrateID"`
	User  *User  `gorm:"foreignKey:UserID"`
	Team  *Team  `gorm:"foreignKey:TeamID"`
}

// CrateOwnerInvitation is a pending, token-bearing offer to become a crate
// owner. It is consumed (deleted) on accept or decline.
type CrateOwnerInvitation struct {
	ID        int64  `gorm:"primaryKey;column:id"`
	CrateID   int64  `gorm:"column:crate_id;index;not null"`
	InviterID int64  `gorm:"column:inviter_id;not null"`
	InviteeID int64  `gorm:"column:invitee_id;index;not null"`
	Token     string `gorm:"column:token"`
	CreatedAt string `gorm:"column:created_at"`
	ExpiresAt string `gorm:"column:expires_at"`

	Crate   *Crate `gorm:"foreignKey:CrateID"`
	Inviter *User  `gorm:"foreignKey:InviterID"`
	Invitee *User  `gorm:"foreignKey:InviteeID"`
}

// ApiToken belongs to a User. The plaintext token value is only ever shown
// in the create response.
type ApiToken struct {
	ID             int64      `gorm:"primaryKey;column:id"`
	UserID         int64      `gorm:"column:user_id;index;not null"`
	Name           string     `gorm:"column:name"`
	Token          string     `gorm:"column:token"`
	CrateScopes    StringList `gorm:"column:crate_scopes;type:text"`
	EndpointScopes StringList `gorm:"column:endpoint_scopes;type:text"`
	ExpiredAt      *string
	LastUsedAt     *string
	Revoked        bool   `gorm:"column:revoked"`
	CreatedAt      string `gorm:"column:created_at"`
}

// Category is a curated, slug-identified tag.
type Category struct {
	Slug        string `gorm:"primaryKey;column:slug"`
	Name        string `gorm:"column:name"`
	Description string `gorm:"column:description"`
	CreatedAt   string `gorm:"column:created_at"`
}

// Keyword is a free-form tag identified by its text.
type Keyword struct {
	Keyword string `gorm:"primaryKey;column:keyword"`
}

// VersionDownload is a (date, count) download record for one version.
type VersionDownload struct {
	ID        int64  `gorm:"primaryKey;column:id"`
	VersionID int64  `gorm:"column:version_id;index;not null"`
	Date      string `gorm:"column:date"`
	Downloads int    `gorm:"column:downloads"`

	Version *Version `gorm:"foreignKey:VersionID"`
}

// Session marks the currently logged-in user. At most one row exists;
// creating a new one supersedes any previous session.
type Session struct {
	ID     int64 `gorm:"primaryKey;column:id"`
	UserID int64 `gorm:"column:user_id;not null"`

	User *User `gorm:"foreignKey:UserID"`
}

// TrustpubGithubConfig authorizes a GitHub Actions workflow to publish a
// crate without a long-lived credential.
type TrustpubGithubConfig struct {
	ID                int64  `gorm:"primaryKey;column:id"`
	CrateID           int64  `gorm:"column:crate_id;index;not null"`
	RepositoryOwner   string `gorm:"column:repository_owner"`
	RepositoryOwnerID int64  `gorm:"column:repository_owner_id"`
	RepositoryName    string `gorm:"column:repository_name"`
	WorkflowFilename  string `gorm:"column:workflow_filename"`
	Environment       *string
	CreatedAt         string `gorm:"column:created_at"`

	Crate *Crate `gorm:"foreignKey:CrateID"`
}

// TrustpubGitlabConfig is the GitLab CI variant of a trusted-publishing rule.
type TrustpubGitlabConfig struct {
	ID               int64  `gorm:"primaryKey;column:id"`
	CrateID          int64  `gorm:"column:crate_id;index;not null"`
	Namespace        string `gorm:"column:namespace"`
	NamespaceID      *string `gorm:"column:namespace_id"`
	Project          string `gorm:"column:project"`
	WorkflowFilepath string `gorm:"column:workflow_filepath"`
	Environment      *string
	CreatedAt        string `gorm:"column:created_at"`

	Crate *Crate `gorm:"foreignKey:CrateID"`
}
