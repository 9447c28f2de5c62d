package store

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Fixed timestamps used by the deterministic defaults. The UI test fixtures
// rely on these exact values.
const (
	defaultCreatedAt = "2010-06-16T21:30:45Z"
	defaultUpdatedAt = "2017-02-24T12:34:56Z"

	defaultInviteCreatedAt = "2016-12-24T12:34:56Z"
	defaultInviteExpiresAt = "2017-01-24T12:34:56Z"

	defaultAvatar = "https://avatars1.githubusercontent.com/u/14631425?v=4"
)

var defaultLicenses = []string{"MIT", "Apache-2.0", "MIT/Apache-2.0"}

var defaultReqs = []string{"^2.1.3", "0.3.7", "~5.2.12", "^0.1.0"}

// defaultLinecounts cycles by version id, so sibling versions show
// different language breakdowns.
var defaultLinecounts = []Linecounts{
	{
		Languages: map[string]LanguageCount{
			"JavaScript": {CodeLines: 325, CommentLines: 80, Files: 8},
			"TypeScript": {CodeLines: 195, CommentLines: 10, Files: 2},
		},
		TotalCodeLines:    520,
		TotalCommentLines: 90,
	},
	{
		Languages: map[string]LanguageCount{
			"CSS":        {CodeLines: 503, CommentLines: 42, Files: 2},
			"Python":     {CodeLines: 284, CommentLines: 91, Files: 3},
			"TypeScript": {CodeLines: 332, CommentLines: 83, Files: 7},
		},
		TotalCodeLines:    1119,
		TotalCommentLines: 216,
	},
	{
		Languages: map[string]LanguageCount{
			"Python": {CodeLines: 421, CommentLines: 64, Files: 8},
		},
		TotalCodeLines:    421,
		TotalCommentLines: 64,
	},
}

// dice maps an id onto a small deterministic factor. All the synthetic
// download and size counters are multiples of it, which keeps fixtures
// stable across runs while still varying between records.
func dice(id int64) int {
	return int((id * 3) % 13)
}

// sequence hands out the sequential numeric ids for every table. Ids are
// assigned at create time so that defaults derived from the id are known
// before the row is inserted.
type sequence struct {
	next map[string]int64
}

func newSequence() *sequence {
	return &sequence{next: make(map[string]int64)}
}

func (s *sequence) take(table string) int64 {
	s.next[table]++
	return s.next[table]
}

// tokenAlphabet is used for opaque token values.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// token produces an opaque value from the store's seeded generator.
func token(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(tokenAlphabet[rng.Intn(len(tokenAlphabet))])
	}
	return b.String()
}

func (s *Store) fillCrateDefaults(c *Crate) {
	if c.ID == 0 {
		c.ID = s.seq.take("crates")
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("crate-%d", c.ID)
	}
	if c.Description == "" {
		c.Description = fmt.Sprintf("This is the description for the crate called %q", c.Name)
	}
	if c.Downloads == 0 {
		c.Downloads = dice(c.ID) * 12345
	}
	if c.RecentDownloads == 0 {
		c.RecentDownloads = int((c.ID*5+9)%13) * 321
	}
	if c.Badges == nil {
		c.Badges = StringList{}
	}
	if c.ExtraDownloads == nil {
		c.ExtraDownloads = ExtraDownloadList{}
	}
	if c.CreatedAt == "" {
		c.CreatedAt = defaultCreatedAt
	}
	if c.UpdatedAt == "" {
		c.UpdatedAt = defaultUpdatedAt
	}
}

func (s *Store) fillVersionDefaults(v *Version) {
	if v.ID == 0 {
		v.ID = s.seq.take("versions")
	}
	if v.Num == "" {
		v.Num = fmt.Sprintf("1.0.%d", v.ID-1)
	}
	if v.License == "" {
		v.License = defaultLicenses[(v.ID-1)%int64(len(defaultLicenses))]
	}
	if v.Downloads == 0 {
		v.Downloads = dice(v.ID) * 1234
	}
	if v.CrateSize == 0 {
		v.CrateSize = dice(v.ID) * 54321
	}
	if v.Features == nil {
		v.Features = JSONMap{}
	}
	if v.Linecounts == nil {
		lc := defaultLinecounts[(v.ID-1)%int64(len(defaultLinecounts))]
		v.Linecounts = &lc
	}
	if v.CreatedAt == "" {
		v.CreatedAt = defaultCreatedAt
	}
	if v.UpdatedAt == "" {
		v.UpdatedAt = defaultUpdatedAt
	}
}

func (s *Store) fillDependencyDefaults(d *Dependency) {
	if d.ID == 0 {
		d.ID = s.seq.take("dependencies")
	}
	if d.Req == "" {
		d.Req = defaultReqs[(d.ID-1)%int64(len(defaultReqs))]
	}
	if d.Features == nil {
		d.Features = StringList{}
	}
	if d.Kind == "" {
		d.Kind = "normal"
	}
}

func (s *Store) fillUserDefaults(u *User) {
	if u.ID == 0 {
		u.ID = s.seq.take("users")
	}
	if u.Login == "" {
		if u.Name != "" {
			u.Login = strings.ToLower(strings.ReplaceAll(u.Name, " ", "-"))
		} else {
			u.Login = fmt.Sprintf("user-%d", u.ID)
		}
	}
	if u.Name == "" {
		u.Name = fmt.Sprintf("User %d", u.ID)
	}
	if u.Avatar == "" {
		u.Avatar = defaultAvatar
	}
	if u.URL == "" {
		u.URL = "https://github.com/" + u.Login
	}
}

func (s *Store) fillTeamDefaults(t *Team) {
	if t.ID == 0 {
		t.ID = s.seq.take("teams")
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("team-%d", t.ID)
	}
	if t.Org == "" {
		t.Org = "rust-lang"
	}
	if t.Login == "" {
		t.Login = fmt.Sprintf("github:%s:%s", t.Org, t.Name)
	}
	if t.Avatar == "" {
		t.Avatar = defaultAvatar
	}
	if t.URL == "" {
		t.URL = "https://github.com/" + t.Org
	}
}

func (s *Store) fillCategoryDefaults(c *Category) {
	n := s.seq.take("categories")
	if c.Name == "" && c.Slug == "" {
		c.Name = fmt.Sprintf("Category %d", n)
	}
	if c.Slug == "" {
		c.Slug = slugify(c.Name)
	}
	if c.Name == "" {
		c.Name = c.Slug
	}
	if c.Description == "" {
		c.Description = fmt.Sprintf("This is the description for the category called %q", c.Name)
	}
	if c.CreatedAt == "" {
		c.CreatedAt = defaultCreatedAt
	}
}

func (s *Store) fillKeywordDefaults(k *Keyword) {
	n := s.seq.take("keywords")
	if k.Keyword == "" {
		k.Keyword = fmt.Sprintf("keyword-%d", n)
	}
}

func (s *Store) fillVersionDownloadDefaults(d *VersionDownload) {
	if d.ID == 0 {
		d.ID = s.seq.take("version_downloads")
	}
	if d.Downloads == 0 {
		d.Downloads = dice(d.ID) * 2345
	}
	if d.Date == "" {
		d.Date = "2019-05-21"
	}
}

func (s *Store) fillInvitationDefaults(i *CrateOwnerInvitation) {
	if i.ID == 0 {
		i.ID = s.seq.take("crate_owner_invitations")
	}
	if i.Token == "" {
		i.Token = uuid.NewString()
	}
	if i.CreatedAt == "" {
		i.CreatedAt = defaultInviteCreatedAt
	}
	if i.ExpiresAt == "" {
		i.ExpiresAt = defaultInviteExpiresAt
	}
}

func (s *Store) fillApiTokenDefaults(t *ApiToken) {
	if t.ID == 0 {
		t.ID = s.seq.take("api_tokens")
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("API Token %d", t.ID)
	}
	if t.Token == "" {
		t.Token = "cio" + token(s.rng, 29)
	}
	if t.CreatedAt == "" {
		t.CreatedAt = s.nowStamp()
	}
}

func (s *Store) fillEmailDefaults(e *Email) {
	if e.ID == 0 {
		e.ID = s.seq.take("emails")
	}
	if e.Token == nil {
		t := token(s.rng, 26)
		e.Token = &t
	}
}

func (s *Store) fillOwnershipDefaults(o *CrateOwnership) {
	if o.ID == 0 {
		o.ID = s.seq.take("crate_ownerships")
	}
}

func (s *Store) fillSessionDefaults(sess *Session) {
	if sess.ID == 0 {
		sess.ID = s.seq.take("sessions")
	}
}

// githubOwnerID is the fixed owner id reported for trusted-publishing
// GitHub repositories.
const githubOwnerID = 5430905

func (s *Store) fillTrustpubGithubDefaults(c *TrustpubGithubConfig) {
	if c.ID == 0 {
		c.ID = s.seq.take("trustpub_github_configs")
	}
	if c.RepositoryOwnerID == 0 {
		c.RepositoryOwnerID = githubOwnerID
	}
	if c.CreatedAt == "" {
		c.CreatedAt = s.nowStamp()
	}
}

func (s *Store) fillTrustpubGitlabDefaults(c *TrustpubGitlabConfig) {
	if c.ID == 0 {
		c.ID = s.seq.take("trustpub_gitlab_configs")
	}
	if c.CreatedAt == "" {
		c.CreatedAt = s.nowStamp()
	}
}

// nowStamp renders the store clock in the millisecond-precision form used
// for records created during a session.
func (s *Store) nowStamp() string {
	return s.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
