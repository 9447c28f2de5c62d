package store

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by lookup helpers when no record matches.
var ErrNotFound = gorm.ErrRecordNotFound

// Store owns the registry database and hands out sequential ids. Boolean
// attributes that default to true (email verification, notification flags)
// are set at create time; callers flip them afterwards with Save.
type Store struct {
	db  *gorm.DB
	seq *sequence
	rng *rand.Rand

	// Now is the store's clock. Tests override it for expiry checks.
	Now func() time.Time
}

// Open creates an empty in-memory registry database seeded for
// reproducible token values.
func Open(seed int64) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(
		&Crate{}, &Version{}, &Dependency{}, &User{}, &Email{}, &Team{},
		&CrateOwnership{}, &CrateOwnerInvitation{}, &ApiToken{},
		&Category{}, &Keyword{}, &VersionDownload{}, &Session{},
		&TrustpubGithubConfig{}, &TrustpubGitlabConfig{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{
		db:  db,
		seq: newSequence(),
		rng: rand.New(rand.NewSource(seed)),
		Now: time.Now,
	}, nil
}

// DB exposes the underlying handle for queries the named helpers do not
// cover.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Save persists modifications to an already-created record.
func (s *Store) Save(value any) error {
	return s.db.Save(value).Error
}

// Delete removes a record by primary key.
func (s *Store) Delete(value any) error {
	return s.db.Delete(value).Error
}

// CreateCrate inserts a crate. Categories and keywords listed on the crate
// are created (or linked) along with it; versions must be created
// separately so their defaults are derived from their own ids.
func (s *Store) CreateCrate(c *Crate) error {
	s.fillCrateDefaults(c)
	for i := range c.Categories {
		s.fillCategoryDefaults(&c.Categories[i])
	}
	for i := range c.Keywords {
		s.fillKeywordDefaults(&c.Keywords[i])
	}
	return s.db.Omit("Versions").Create(c).Error
}

// CreateVersion inserts a version. The crate relationship is required.
func (s *Store) CreateVersion(v *Version) error {
	if v.CrateID == 0 && v.Crate != nil {
		v.CrateID = v.Crate.ID
	}
	if v.CrateID == 0 {
		return missingRelationship("version", "crate")
	}
	if v.PublishedBy != nil && v.PublishedByID == nil {
		id := v.PublishedBy.ID
		v.PublishedByID = &id
	}
	s.fillVersionDefaults(v)
	return s.db.Omit(clause.Associations).Create(v).Error
}

// CreateDependency inserts a dependency edge. Both the depended-on crate
// and the consuming version are required.
func (s *Store) CreateDependency(d *Dependency) error {
	if d.CrateID == 0 && d.Crate != nil {
		d.CrateID = d.Crate.ID
	}
	if d.CrateID == 0 {
		return missingRelationship("dependency", "crate")
	}
	if d.VersionID == 0 && d.Version != nil {
		d.VersionID = d.Version.ID
	}
	if d.VersionID == 0 {
		return missingRelationship("dependency", "version")
	}
	s.fillDependencyDefaults(d)
	return s.db.Omit(clause.Associations).Create(d).Error
}

// CreateUser inserts a user with publish notifications enabled. A user
// created without emails gets a verified primary address derived from the
// login.
func (s *Store) CreateUser(u *User) error {
	s.fillUserDefaults(u)
	u.PublishNotifications = true
	supplied := u.Emails
	u.Emails = nil
	if err := s.db.Omit(clause.Associations).Create(u).Error; err != nil {
		return err
	}
	if len(supplied) == 0 {
		supplied = []Email{{
			Address:           u.Login + "@crates.io",
			Verified:          true,
			Primary:           true,
			SendNotifications: true,
		}}
	}
	for i := range supplied {
		supplied[i].UserID = u.ID
		if err := s.CreateEmail(&supplied[i]); err != nil {
			return err
		}
	}
	u.Emails = supplied
	return nil
}

// CreateEmail inserts an email address. The user relationship is required.
// The first address of a user becomes its primary one.
func (s *Store) CreateEmail(e *Email) error {
	if e.UserID == 0 {
		return missingRelationship("email", "user")
	}
	s.fillEmailDefaults(e)
	var existing int64
	if err := s.db.Model(&Email{}).Where("user_id = ?", e.UserID).Count(&existing).Error; err != nil {
		return err
	}
	if existing == 0 {
		e.Primary = true
		e.SendNotifications = true
	}
	return s.db.Create(e).Error
}

// CreateTeam inserts a team.
func (s *Store) CreateTeam(t *Team) error {
	s.fillTeamDefaults(t)
	return s.db.Create(t).Error
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(c *Category) error {
	s.fillCategoryDefaults(c)
	return s.db.Create(c).Error
}

// CreateKeyword inserts a keyword.
func (s *Store) CreateKeyword(k *Keyword) error {
	s.fillKeywordDefaults(k)
	return s.db.Create(k).Error
}

// CreateVersionDownload inserts a per-date download record. The version
// relationship is required.
func (s *Store) CreateVersionDownload(d *VersionDownload) error {
	if d.VersionID == 0 && d.Version != nil {
		d.VersionID = d.Version.ID
	}
	if d.VersionID == 0 {
		return missingRelationship("version-download", "version")
	}
	s.fillVersionDownloadDefaults(d)
	return s.db.Omit(clause.Associations).Create(d).Error
}

// CreateOwnership inserts an ownership. Exactly one of a user or a team
// must be named, and email notifications start enabled.
func (s *Store) CreateOwnership(o *CrateOwnership) error {
	if o.CrateID == 0 && o.Crate != nil {
		o.CrateID = o.Crate.ID
	}
	if o.CrateID == 0 {
		return missingRelationship("crate-ownership", "crate")
	}
	if o.UserID == nil && o.User != nil {
		id := o.User.ID
		o.UserID = &id
	}
	if o.TeamID == nil && o.Team != nil {
		id := o.Team.ID
		o.TeamID = &id
	}
	if o.UserID != nil && o.TeamID != nil {
		return &OwnershipConflictError{Both: true}
	}
	if o.UserID == nil && o.TeamID == nil {
		return &OwnershipConflictError{}
	}
	s.fillOwnershipDefaults(o)
	o.EmailNotifications = true
	return s.db.Omit(clause.Associations).Create(o).Error
}

// CreateInvitation inserts a pending owner invitation.
func (s *Store) CreateInvitation(i *CrateOwnerInvitation) error {
	if i.CrateID == 0 && i.Crate != nil {
		i.CrateID = i.Crate.ID
	}
	if i.CrateID == 0 {
		return missingRelationship("crate-owner-invitation", "crate")
	}
	if i.InviterID == 0 && i.Inviter != nil {
		i.InviterID = i.Inviter.ID
	}
	if i.InviterID == 0 {
		return missingRelationship("crate-owner-invitation", "inviter")
	}
	if i.InviteeID == 0 && i.Invitee != nil {
		i.InviteeID = i.Invitee.ID
	}
	if i.InviteeID == 0 {
		return missingRelationship("crate-owner-invitation", "invitee")
	}
	s.fillInvitationDefaults(i)
	return s.db.Omit(clause.Associations).Create(i).Error
}

// CreateApiToken inserts an API token. The user relationship is required.
func (s *Store) CreateApiToken(t *ApiToken) error {
	if t.UserID == 0 {
		return missingRelationship("api-token", "user")
	}
	s.fillApiTokenDefaults(t)
	return s.db.Create(t).Error
}

// CreateSession logs a user in, superseding any previous session.
func (s *Store) CreateSession(sess *Session) error {
	if sess.UserID == 0 && sess.User != nil {
		sess.UserID = sess.User.ID
	}
	if sess.UserID == 0 {
		return missingRelationship("session", "user")
	}
	if err := s.db.Where("1 = 1").Delete(&Session{}).Error; err != nil {
		return err
	}
	s.fillSessionDefaults(sess)
	return s.db.Omit(clause.Associations).Create(sess).Error
}

// CreateTrustpubGithubConfig inserts a GitHub trusted-publishing config.
func (s *Store) CreateTrustpubGithubConfig(c *TrustpubGithubConfig) error {
	if c.CrateID == 0 && c.Crate != nil {
		c.CrateID = c.Crate.ID
	}
	if c.CrateID == 0 {
		return missingRelationship("trustpub-github-config", "crate")
	}
	s.fillTrustpubGithubDefaults(c)
	return s.db.Omit(clause.Associations).Create(c).Error
}

// CreateTrustpubGitlabConfig inserts a GitLab trusted-publishing config.
func (s *Store) CreateTrustpubGitlabConfig(c *TrustpubGitlabConfig) error {
	if c.CrateID == 0 && c.Crate != nil {
		c.CrateID = c.Crate.ID
	}
	if c.CrateID == 0 {
		return missingRelationship("trustpub-gitlab-config", "crate")
	}
	s.fillTrustpubGitlabDefaults(c)
	return s.db.Omit(clause.Associations).Create(c).Error
}

// canonNameExpr folds case and treats `_` and `-` as the same character,
// matching how crate names are resolved from URLs.
const canonNameExpr = "replace(lower(name), '_', '-') = replace(lower(?), '_', '-')"

// CrateByName resolves a crate by its canonicalized name.
func (s *Store) CrateByName(name string) (*Crate, error) {
	var c Crate
	err := s.db.Preload("Versions").Preload("Categories").Preload("Keywords").
		Where(canonNameExpr, name).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CrateByID loads a crate with its versions.
func (s *Store) CrateByID(id int64) (*Crate, error) {
	var c Crate
	err := s.db.Preload("Versions").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CrateFilter selects crates for listing. Zero-valued fields are ignored.
type CrateFilter struct {
	Letter     string
	Query      string
	UserID     int64
	TeamID     int64
	FollowedBy int64
	Names      []string
	Category   string
	Keyword    string
}

// ListCrates returns the crates matching the filter, versions preloaded,
// in id order. Sorting and pagination happen in the callers.
func (s *Store) ListCrates(f CrateFilter) ([]Crate, error) {
	q := s.db.Model(&Crate{}).Preload("Versions").Order("crates.id")
	if f.Letter != "" {
		q = q.Where("lower(substr(name, 1, 1)) = lower(?)", f.Letter)
	}
	if f.Query != "" {
		q = q.Where("name LIKE ?", "%"+f.Query+"%")
	}
	if f.UserID != 0 {
		q = q.Joins("JOIN crate_ownerships co_u ON co_u.crate_id = crates.id").
			Where("co_u.user_id = ?", f.UserID)
	}
	if f.TeamID != 0 {
		q = q.Joins("JOIN crate_ownerships co_t ON co_t.crate_id = crates.id").
			Where("co_t.team_id = ?", f.TeamID)
	}
	if f.FollowedBy != 0 {
		q = q.Joins("JOIN followed_crates fc ON fc.crate_id = crates.id").
			Where("fc.user_id = ?", f.FollowedBy)
	}
	if len(f.Names) > 0 {
		q = q.Where("name IN ?", f.Names)
	}
	if f.Category != "" {
		q = q.Joins("JOIN crate_categories cc ON cc.crate_id = crates.id").
			Where("cc.category_slug = ?", f.Category)
	}
	if f.Keyword != "" {
		q = q.Joins("JOIN crate_keywords ck ON ck.crate_id = crates.id").
			Where("ck.keyword_keyword = ?", f.Keyword)
	}
	var crates []Crate
	if err := q.Find(&crates).Error; err != nil {
		return nil, err
	}
	return crates, nil
}

// CrateCount reports the number of crates in the registry.
func (s *Store) CrateCount() (int64, error) {
	var n int64
	err := s.db.Model(&Crate{}).Count(&n).Error
	return n, err
}

// SumCrateDownloads totals the all-time download counters of every crate.
func (s *Store) SumCrateDownloads() (int64, error) {
	var n int64
	err := s.db.Model(&Crate{}).Select("coalesce(sum(downloads), 0)").Scan(&n).Error
	return n, err
}

// VersionsOfCrate returns a crate's versions in id order.
func (s *Store) VersionsOfCrate(crateID int64) ([]Version, error) {
	var versions []Version
	err := s.db.Preload("PublishedBy").Preload("PublishedBy.Emails").
		Where("crate_id = ?", crateID).Order("id").Find(&versions).Error
	return versions, err
}

// VersionByNum resolves a crate's version by its exact number string.
func (s *Store) VersionByNum(crateID int64, num string) (*Version, error) {
	var v Version
	err := s.db.Preload("PublishedBy").Preload("PublishedBy.Emails").
		Where("crate_id = ? AND num = ?", crateID, num).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VersionByID loads a version with its crate.
func (s *Store) VersionByID(id int64) (*Version, error) {
	var v Version
	err := s.db.Preload("Crate").First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DependenciesOfVersion returns the dependencies declared by a version,
// with the depended-on crates loaded.
func (s *Store) DependenciesOfVersion(versionID int64) ([]Dependency, error) {
	var deps []Dependency
	err := s.db.Preload("Crate").Where("version_id = ?", versionID).Order("id").Find(&deps).Error
	return deps, err
}

// ReverseDependencies returns the dependency edges pointing at a crate,
// with the consuming versions and their crates loaded.
func (s *Store) ReverseDependencies(crateID int64) ([]Dependency, error) {
	var deps []Dependency
	err := s.db.Preload("Version").Preload("Version.Crate").
		Where("crate_id = ?", crateID).Order("id").Find(&deps).Error
	return deps, err
}

// OwnershipsOfCrate returns a crate's ownerships with owners loaded.
func (s *Store) OwnershipsOfCrate(crateID int64) ([]CrateOwnership, error) {
	var owners []CrateOwnership
	err := s.db.Preload("User").Preload("User.Emails").Preload("Team").
		Where("crate_id = ?", crateID).Order("id").Find(&owners).Error
	return owners, err
}

// OwnershipOf returns the ownership linking a crate to a user, if any.
func (s *Store) OwnershipOf(crateID, userID int64) (*CrateOwnership, error) {
	var o CrateOwnership
	err := s.db.Where("crate_id = ? AND user_id = ?", crateID, userID).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UserByID loads a user with emails.
func (s *Store) UserByID(id int64) (*User, error) {
	var u User
	err := s.db.Preload("Emails").First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByLogin resolves a user by login.
func (s *Store) UserByLogin(login string) (*User, error) {
	var u User
	err := s.db.Preload("Emails").Where("login = ?", login).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TeamByLogin resolves a team by its github:org:name login.
func (s *Store) TeamByLogin(login string) (*Team, error) {
	var t Team
	err := s.db.Where("login = ?", login).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TeamByID loads a team.
func (s *Store) TeamByID(id int64) (*Team, error) {
	var t Team
	err := s.db.First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EmailsOfUser returns a user's addresses in id order.
func (s *Store) EmailsOfUser(userID int64) ([]Email, error) {
	var emails []Email
	err := s.db.Where("user_id = ?", userID).Order("id").Find(&emails).Error
	return emails, err
}

// EmailByID loads one email address.
func (s *Store) EmailByID(id int64) (*Email, error) {
	var e Email
	err := s.db.First(&e, id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ResetEmailToken assigns a fresh verification token. The caller persists
// the change.
func (s *Store) ResetEmailToken(e *Email) {
	t := token(s.rng, 26)
	e.Token = &t
}

// EmailByToken resolves an address by its verification token.
func (s *Store) EmailByToken(tok string) (*Email, error) {
	var e Email
	err := s.db.Where("token = ?", tok).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CurrentSession returns the active session with its user loaded, or
// ErrNotFound when nobody is logged in.
func (s *Store) CurrentSession() (*Session, error) {
	var sess Session
	err := s.db.Preload("User").Preload("User.Emails").First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession logs the current user out. Deleting a nonexistent session
// is not an error.
func (s *Store) DeleteSession() error {
	return s.db.Where("1 = 1").Delete(&Session{}).Error
}

// FollowCrate records that a user follows a crate. Following an already
// followed crate is a no-op.
func (s *Store) FollowCrate(userID, crateID int64) error {
	following, err := s.IsFollowing(userID, crateID)
	if err != nil {
		return err
	}
	if following {
		return nil
	}
	return s.db.Exec("INSERT INTO followed_crates (user_id, crate_id) VALUES (?, ?)", userID, crateID).Error
}

// UnfollowCrate removes a follow edge. Unfollowing a crate that is not
// followed is a no-op.
func (s *Store) UnfollowCrate(userID, crateID int64) error {
	return s.db.Exec("DELETE FROM followed_crates WHERE user_id = ? AND crate_id = ?", userID, crateID).Error
}

// IsFollowing reports whether a follow edge exists.
func (s *Store) IsFollowing(userID, crateID int64) (bool, error) {
	var n int64
	err := s.db.Table("followed_crates").
		Where("user_id = ? AND crate_id = ?", userID, crateID).Count(&n).Error
	return n > 0, err
}

// InvitationsForInvitee returns the pending invitations addressed to a
// user, with crates and inviters loaded.
func (s *Store) InvitationsForInvitee(userID int64) ([]CrateOwnerInvitation, error) {
	var invites []CrateOwnerInvitation
	err := s.db.Preload("Crate").Preload("Inviter").Preload("Invitee").
		Where("invitee_id = ?", userID).Order("id").Find(&invites).Error
	return invites, err
}

// InvitationsForCrate returns the pending invitations of a crate.
func (s *Store) InvitationsForCrate(crateID int64) ([]CrateOwnerInvitation, error) {
	var invites []CrateOwnerInvitation
	err := s.db.Preload("Crate").Preload("Inviter").Preload("Invitee").
		Where("crate_id = ?", crateID).Order("id").Find(&invites).Error
	return invites, err
}

// InvitationFor returns the pending invitation of a user for one crate.
func (s *Store) InvitationFor(crateID, inviteeID int64) (*CrateOwnerInvitation, error) {
	var invite CrateOwnerInvitation
	err := s.db.Preload("Crate").Where("crate_id = ? AND invitee_id = ?", crateID, inviteeID).
		First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// DeleteInvitationsFor removes the pending invitations of one user on one
// crate. Revoking an ownership revokes the invitations it implies.
func (s *Store) DeleteInvitationsFor(crateID, inviteeID int64) error {
	return s.db.Where("crate_id = ? AND invitee_id = ?", crateID, inviteeID).
		Delete(&CrateOwnerInvitation{}).Error
}

// InvitationByToken resolves an invitation by its accept token.
func (s *Store) InvitationByToken(tok string) (*CrateOwnerInvitation, error) {
	var invite CrateOwnerInvitation
	err := s.db.Preload("Crate").Where("token = ?", tok).First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// TokensForUser returns a user's unrevoked API tokens, newest first.
func (s *Store) TokensForUser(userID int64) ([]ApiToken, error) {
	var tokens []ApiToken
	err := s.db.Where("user_id = ? AND revoked = ?", userID, false).
		Order("id DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	live := tokens[:0]
	for _, t := range tokens {
		if t.ExpiredAt != nil {
			exp, err := time.Parse(time.RFC3339, *t.ExpiredAt)
			if err == nil && !exp.After(now) {
				continue
			}
		}
		live = append(live, t)
	}
	return live, nil
}

// TokenByID loads one API token.
func (s *Store) TokenByID(id int64) (*ApiToken, error) {
	var t ApiToken
	err := s.db.First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Categories returns every category in slug order.
func (s *Store) Categories() ([]Category, error) {
	var cats []Category
	err := s.db.Order("slug").Find(&cats).Error
	return cats, err
}

// CategoryBySlug loads one category.
func (s *Store) CategoryBySlug(slug string) (*Category, error) {
	var c Category
	err := s.db.Where("slug = ?", slug).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CrateCountForCategory counts the crates tagged with a category.
func (s *Store) CrateCountForCategory(slug string) (int64, error) {
	var n int64
	err := s.db.Table("crate_categories").Where("category_slug = ?", slug).Count(&n).Error
	return n, err
}

// Keywords returns every keyword in lexical order.
func (s *Store) Keywords() ([]Keyword, error) {
	var kws []Keyword
	err := s.db.Order("keyword").Find(&kws).Error
	return kws, err
}

// KeywordByID loads one keyword.
func (s *Store) KeywordByID(id string) (*Keyword, error) {
	var k Keyword
	err := s.db.Where("keyword = ?", id).First(&k).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// CrateCountForKeyword counts the crates tagged with a keyword.
func (s *Store) CrateCountForKeyword(keyword string) (int64, error) {
	var n int64
	err := s.db.Table("crate_keywords").Where("keyword_keyword = ?", keyword).Count(&n).Error
	return n, err
}

// DownloadsForVersions returns the per-date download records of a set of
// versions.
func (s *Store) DownloadsForVersions(versionIDs []int64) ([]VersionDownload, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	var downloads []VersionDownload
	err := s.db.Where("version_id IN ?", versionIDs).Order("id").Find(&downloads).Error
	return downloads, err
}

// TrustpubGithubConfigsForCrate returns a crate's GitHub publishing
// configs in id order.
func (s *Store) TrustpubGithubConfigsForCrate(crateID int64) ([]TrustpubGithubConfig, error) {
	var configs []TrustpubGithubConfig
	err := s.db.Where("crate_id = ?", crateID).Order("id").Find(&configs).Error
	return configs, err
}

// TrustpubGithubConfigByID loads one GitHub publishing config.
func (s *Store) TrustpubGithubConfigByID(id int64) (*TrustpubGithubConfig, error) {
	var c TrustpubGithubConfig
	err := s.db.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TrustpubGitlabConfigsForCrate returns a crate's GitLab publishing
// configs in id order.
func (s *Store) TrustpubGitlabConfigsForCrate(crateID int64) ([]TrustpubGitlabConfig, error) {
	var configs []TrustpubGitlabConfig
	err := s.db.Where("crate_id = ?", crateID).Order("id").Find(&configs).Error
	return configs, err
}

// TrustpubGitlabConfigByID loads one GitLab publishing config.
func (s *Store) TrustpubGitlabConfigByID(id int64) (*TrustpubGitlabConfig, error) {
	var c TrustpubGitlabConfig
	err := s.db.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IsNotFound reports whether err means a record was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
