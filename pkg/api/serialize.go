package api

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/cratesim/cratesim/pkg/store"
)

// The structs in this file are the wire shapes of the simulated API. All
// derived fields are computed here at serialization time rather than being
// stored on the records.

type crateLinksJSON struct {
	OwnerTeam           string `json:"owner_team"`
	OwnerUser           string `json:"owner_user"`
	ReverseDependencies string `json:"reverse_dependencies"`
	VersionDownloads    string `json:"version_downloads"`
	Versions            string `json:"versions"`
}

type crateJSON struct {
	ID              string         `json:"id"`
	Badges          []string       `json:"badges"`
	Categories      *[]string      `json:"categories"`
	CreatedAt       string         `json:"created_at"`
	DefaultVersion  string         `json:"default_version"`
	Description     string         `json:"description"`
	Documentation   *string        `json:"documentation"`
	Downloads       int            `json:"downloads"`
	ExactMatch      *bool          `json:"exact_match,omitempty"`
	Homepage        *string        `json:"homepage"`
	Keywords        *[]string      `json:"keywords"`
	Links           crateLinksJSON `json:"links"`
	MaxVersion      string         `json:"max_version"`
	MaxStable       *string        `json:"max_stable_version"`
	Name            string         `json:"name"`
	NewestVersion   string         `json:"newest_version"`
	NumVersions     *int           `json:"num_versions,omitempty"`
	Repository      *string        `json:"repository"`
	RecentDownloads int            `json:"recent_downloads"`
	TrustpubOnly    *bool          `json:"trustpub_only,omitempty"`
	UpdatedAt       string         `json:"updated_at"`
	Versions        *[]int64       `json:"versions"`
	Yanked          bool           `json:"yanked"`
}

func crateLinks(name string) crateLinksJSON {
	base := "/api/v1/crates/" + name
	return crateLinksJSON{
		OwnerTeam:           base + "/owner_team",
		OwnerUser:           base + "/owner_user",
		ReverseDependencies: base + "/reverse_dependencies",
		VersionDownloads:    base + "/downloads",
		Versions:            base + "/versions",
	}
}

// baseCrateJSON builds the listing shape of a crate: related collections
// stay null and the detail-only fields stay unset. The crate's versions
// must be loaded; a crate without versions cannot be serialized.
func baseCrateJSON(c *store.Crate) (crateJSON, error) {
	def := defaultVersion(c.Versions)
	if def == nil {
		return crateJSON{}, fmt.Errorf("crate %q has no versions", c.Name)
	}
	badges := []string(c.Badges)
	if badges == nil {
		badges = []string{}
	}
	return crateJSON{
		ID:              c.Name,
		Badges:          badges,
		CreatedAt:       c.CreatedAt,
		DefaultVersion:  def.Num,
		Description:     c.Description,
		Documentation:   c.Documentation,
		Downloads:       c.Downloads,
		Homepage:        c.Homepage,
		Links:           crateLinks(c.Name),
		MaxVersion:      maxVersion(c.Versions),
		MaxStable:       maxStableVersion(c.Versions),
		Name:            c.Name,
		NewestVersion:   newestVersion(c.Versions).Num,
		Repository:      c.Repository,
		RecentDownloads: c.RecentDownloads,
		UpdatedAt:       c.UpdatedAt,
		Yanked:          def.Yanked,
	}, nil
}

// detailCrateJSON adds the related collections and detail-only fields to
// the listing shape.
func detailCrateJSON(c *store.Crate) (crateJSON, error) {
	out, err := baseCrateJSON(c)
	if err != nil {
		return crateJSON{}, err
	}
	slugs := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		slugs = append(slugs, cat.Slug)
	}
	keywords := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		keywords = append(keywords, kw.Keyword)
	}
	ids := make([]int64, 0, len(c.Versions))
	for _, v := range c.Versions {
		ids = append(ids, v.ID)
	}
	n := len(c.Versions)
	no := false
	out.Categories = &slugs
	out.Keywords = &keywords
	out.Versions = &ids
	out.NumVersions = &n
	out.TrustpubOnly = &no
	return out, nil
}

// defaultVersion picks the version a crate page shows by default: the
// highest stable non-yanked version, falling back to the highest non-yanked
// version, falling back to the highest version overall.
func defaultVersion(versions []store.Version) *store.Version {
	stable := func(v *store.Version, parsed *semver.Version) bool {
		return !v.Yanked && parsed.Prerelease() == ""
	}
	unyanked := func(v *store.Version, _ *semver.Version) bool {
		return !v.Yanked
	}
	any := func(*store.Version, *semver.Version) bool {
		return true
	}
	for _, accept := range []func(*store.Version, *semver.Version) bool{stable, unyanked, any} {
		if v := highest(versions, accept); v != nil {
			return v
		}
	}
	if len(versions) == 0 {
		return nil
	}
	// Nothing parseable; the newest entry is the best guess left.
	return newestVersion(versions)
}

// highest returns the version with the greatest semver precedence among
// those the filter accepts. Unparseable numbers are skipped.
func highest(versions []store.Version, accept func(*store.Version, *semver.Version) bool) *store.Version {
	var best *store.Version
	var bestParsed *semver.Version
	for i := range versions {
		v := &versions[i]
		parsed, err := semver.NewVersion(v.Num)
		if err != nil || !accept(v, parsed) {
			continue
		}
		if best == nil || parsed.GreaterThan(bestParsed) {
			best, bestParsed = v, parsed
		}
	}
	return best
}

func maxVersion(versions []store.Version) string {
	if v := highest(versions, func(v *store.Version, _ *semver.Version) bool { return !v.Yanked }); v != nil {
		return v.Num
	}
	if v := highest(versions, func(*store.Version, *semver.Version) bool { return true }); v != nil {
		return v.Num
	}
	return newestVersion(versions).Num
}

func maxStableVersion(versions []store.Version) *string {
	v := highest(versions, func(v *store.Version, parsed *semver.Version) bool {
		return !v.Yanked && parsed.Prerelease() == ""
	})
	if v == nil {
		return nil
	}
	return &v.Num
}

// newestVersion picks the most recently published version, by timestamp
// with creation order as the tie-break.
func newestVersion(versions []store.Version) *store.Version {
	var newest *store.Version
	for i := range versions {
		v := &versions[i]
		if newest == nil || v.CreatedAt > newest.CreatedAt ||
			(v.CreatedAt == newest.CreatedAt && v.ID > newest.ID) {
			newest = v
		}
	}
	return newest
}

type releaseTrackJSON struct {
	Highest string `json:"highest"`
}

// releaseTracks groups the non-yanked stable versions into release lines:
// one track per major version, with the 0.x minors forming tracks of their
// own, each reporting its highest version. Prereleases never contribute.
func releaseTracks(versions []store.Version) map[string]releaseTrackJSON {
	type entry struct {
		parsed *semver.Version
		num    string
	}
	best := map[string]entry{}
	for i := range versions {
		v := &versions[i]
		if v.Yanked {
			continue
		}
		parsed, err := semver.NewVersion(v.Num)
		if err != nil || parsed.Prerelease() != "" {
			continue
		}
		name := fmt.Sprintf("%d", parsed.Major())
		if parsed.Major() == 0 {
			name = fmt.Sprintf("0.%d", parsed.Minor())
		}
		if cur, ok := best[name]; !ok || parsed.GreaterThan(cur.parsed) {
			best[name] = entry{parsed: parsed, num: v.Num}
		}
	}
	tracks := make(map[string]releaseTrackJSON, len(best))
	for name, e := range best {
		tracks[name] = releaseTrackJSON{Highest: e.num}
	}
	return tracks
}

type versionLinksJSON struct {
	Dependencies     string `json:"dependencies"`
	VersionDownloads string `json:"version_downloads"`
}

type versionJSON struct {
	ID          int64             `json:"id"`
	Crate       string            `json:"crate"`
	CrateSize   int               `json:"crate_size"`
	CreatedAt   string            `json:"created_at"`
	DlPath      string            `json:"dl_path"`
	Downloads   int               `json:"downloads"`
	Features    store.JSONMap     `json:"features"`
	License     string            `json:"license"`
	Linecounts  *store.Linecounts `json:"linecounts,omitempty"`
	Links       versionLinksJSON  `json:"links"`
	Num         string            `json:"num"`
	PublishedBy *userJSON         `json:"published_by"`
	ReadmePath  string            `json:"readme_path"`
	RustVersion *string           `json:"rust_version"`
	Trustpub    *store.JSONMap    `json:"trustpub_data,omitempty"`
	UpdatedAt   string            `json:"updated_at"`
	Yanked      bool              `json:"yanked"`
	YankMessage *string           `json:"yank_message"`
}

// wireVersionJSON serializes one version. The detailed shape carries the
// line counts and trusted-publishing metadata; listings leave them out.
func wireVersionJSON(v *store.Version, crateName string, detailed bool) versionJSON {
	base := "/api/v1/crates/" + crateName + "/" + v.Num
	features := v.Features
	if features == nil {
		features = store.JSONMap{}
	}
	out := versionJSON{
		ID:          v.ID,
		Crate:       crateName,
		CrateSize:   v.CrateSize,
		CreatedAt:   v.CreatedAt,
		DlPath:      base + "/download",
		Downloads:   v.Downloads,
		Features:    features,
		License:     v.License,
		Links:       versionLinksJSON{Dependencies: base + "/dependencies", VersionDownloads: base + "/downloads"},
		Num:         v.Num,
		ReadmePath:  base + "/readme",
		RustVersion: v.RustVersion,
		UpdatedAt:   v.UpdatedAt,
		Yanked:      v.Yanked,
		YankMessage: v.YankMessage,
	}
	if v.PublishedBy != nil {
		u := publicUserJSON(v.PublishedBy)
		out.PublishedBy = &u
	}
	if detailed {
		out.Linecounts = v.Linecounts
		out.Trustpub = &v.TrustpubData
	}
	return out
}

type userJSON struct {
	ID     int64  `json:"id"`
	Avatar string `json:"avatar"`
	Kind   string `json:"kind,omitempty"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

func publicUserJSON(u *store.User) userJSON {
	return userJSON{ID: u.ID, Avatar: u.Avatar, Login: u.Login, Name: u.Name, URL: u.URL}
}

type privateUserJSON struct {
	ID                    int64   `json:"id"`
	Avatar                string  `json:"avatar"`
	Email                 *string `json:"email"`
	EmailVerificationSent bool    `json:"email_verification_sent"`
	EmailVerified         bool    `json:"email_verified"`
	Login                 string  `json:"login"`
	Name                  string  `json:"name"`
	URL                   string  `json:"url"`
}

// wirePrivateUserJSON is the owner's view of their own account. The email
// fields reflect the primary address.
func wirePrivateUserJSON(u *store.User) privateUserJSON {
	out := privateUserJSON{
		ID:     u.ID,
		Avatar: u.Avatar,
		Login:  u.Login,
		Name:   u.Name,
		URL:    u.URL,
	}
	if email := primaryEmail(u); email != nil {
		out.Email = &email.Address
		out.EmailVerified = email.Verified
		out.EmailVerificationSent = true
	}
	return out
}

func primaryEmail(u *store.User) *store.Email {
	for i := range u.Emails {
		if u.Emails[i].Primary {
			return &u.Emails[i]
		}
	}
	if len(u.Emails) > 0 {
		return &u.Emails[0]
	}
	return nil
}

type teamJSON struct {
	ID     int64  `json:"id"`
	Avatar string `json:"avatar"`
	Kind   string `json:"kind,omitempty"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

func wireTeamJSON(t *store.Team) teamJSON {
	return teamJSON{ID: t.ID, Avatar: t.Avatar, Login: t.Login, Name: t.Name, URL: t.URL}
}

type dependencyJSON struct {
	ID              int64    `json:"id"`
	CrateID         string   `json:"crate_id"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	Req             string   `json:"req"`
	Target          *string  `json:"target"`
	VersionID       int64    `json:"version_id"`
}

// wireDependencyJSON serializes a dependency edge. crateName is the name
// of the depended-on crate.
func wireDependencyJSON(d *store.Dependency, crateName string) dependencyJSON {
	features := []string(d.Features)
	if features == nil {
		features = []string{}
	}
	return dependencyJSON{
		ID:              d.ID,
		CrateID:         crateName,
		DefaultFeatures: d.DefaultFeatures,
		Features:        features,
		Kind:            d.Kind,
		Optional:        !d.Required,
		Req:             d.Req,
		Target:          d.Target,
		VersionID:       d.VersionID,
	}
}

type versionDownloadJSON struct {
	Date      string `json:"date"`
	Downloads int    `json:"downloads"`
	Version   int64  `json:"version"`
}

func wireVersionDownloadJSON(d *store.VersionDownload) versionDownloadJSON {
	return versionDownloadJSON{Date: d.Date, Downloads: d.Downloads, Version: d.VersionID}
}

type categoryJSON struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	CratesCnt   int64  `json:"crates_cnt"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

func (s *Server) categoryWireJSON(c *store.Category) (categoryJSON, error) {
	count, err := s.store.CrateCountForCategory(c.Slug)
	if err != nil {
		return categoryJSON{}, err
	}
	return categoryJSON{
		ID:          c.Slug,
		Category:    c.Name,
		CratesCnt:   count,
		CreatedAt:   c.CreatedAt,
		Description: c.Description,
		Slug:        c.Slug,
	}, nil
}

type categorySlugJSON struct {
	Description string `json:"description"`
	ID          string `json:"id"`
	Slug        string `json:"slug"`
}

type keywordJSON struct {
	ID        string `json:"id"`
	CratesCnt int64  `json:"crates_cnt"`
	Keyword   string `json:"keyword"`
}

func (s *Server) keywordWireJSON(k *store.Keyword) (keywordJSON, error) {
	count, err := s.store.CrateCountForKeyword(k.Keyword)
	if err != nil {
		return keywordJSON{}, err
	}
	return keywordJSON{ID: k.Keyword, CratesCnt: count, Keyword: k.Keyword}, nil
}

type invitationJSON struct {
	CrateID   int64  `json:"crate_id"`
	CrateName string `json:"crate_name"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
	InviteeID int64  `json:"invitee_id"`
	InviterID int64  `json:"inviter_id"`
}

func wireInvitationJSON(i *store.CrateOwnerInvitation) invitationJSON {
	name := ""
	if i.Crate != nil {
		name = i.Crate.Name
	}
	return invitationJSON{
		CrateID:   i.CrateID,
		CrateName: name,
		CreatedAt: i.CreatedAt,
		ExpiresAt: i.ExpiresAt,
		InviteeID: i.InviteeID,
		InviterID: i.InviterID,
	}
}

type apiTokenJSON struct {
	ID             int64    `json:"id"`
	CrateScopes    []string `json:"crate_scopes"`
	CreatedAt      string   `json:"created_at"`
	EndpointScopes []string `json:"endpoint_scopes"`
	ExpiredAt      *string  `json:"expired_at"`
	LastUsedAt     *string  `json:"last_used_at"`
	Name           string   `json:"name"`
}

func wireTokenJSON(t *store.ApiToken) apiTokenJSON {
	return apiTokenJSON{
		ID:             t.ID,
		CrateScopes:    []string(t.CrateScopes),
		CreatedAt:      t.CreatedAt,
		EndpointScopes: []string(t.EndpointScopes),
		ExpiredAt:      t.ExpiredAt,
		LastUsedAt:     t.LastUsedAt,
		Name:           t.Name,
	}
}

// newTokenJSON is the create response; the plaintext value appears here and
// nowhere else.
type newTokenJSON struct {
	apiTokenJSON
	Revoked bool   `json:"revoked"`
	Token   string `json:"token"`
}

type githubConfigJSON struct {
	ID                int64   `json:"id"`
	Crate             string  `json:"crate"`
	RepositoryOwner   string  `json:"repository_owner"`
	RepositoryOwnerID int64   `json:"repository_owner_id"`
	RepositoryName    string  `json:"repository_name"`
	WorkflowFilename  string  `json:"workflow_filename"`
	Environment       *string `json:"environment"`
	CreatedAt         string  `json:"created_at"`
}

func wireGithubConfigJSON(c *store.TrustpubGithubConfig, crateName string) githubConfigJSON {
	return githubConfigJSON{
		ID:                c.ID,
		Crate:             crateName,
		RepositoryOwner:   c.RepositoryOwner,
		RepositoryOwnerID: c.RepositoryOwnerID,
		RepositoryName:    c.RepositoryName,
		WorkflowFilename:  c.WorkflowFilename,
		Environment:       c.Environment,
		CreatedAt:         c.CreatedAt,
	}
}

type gitlabConfigJSON struct {
	ID               int64   `json:"id"`
	Crate            string  `json:"crate"`
	Namespace        string  `json:"namespace"`
	NamespaceID      *string `json:"namespace_id"`
	Project          string  `json:"project"`
	WorkflowFilepath string  `json:"workflow_filepath"`
	Environment      *string `json:"environment"`
	CreatedAt        string  `json:"created_at"`
}

func wireGitlabConfigJSON(c *store.TrustpubGitlabConfig, crateName string) gitlabConfigJSON {
	return gitlabConfigJSON{
		ID:               c.ID,
		Crate:            crateName,
		Namespace:        c.Namespace,
		NamespaceID:      c.NamespaceID,
		Project:          c.Project,
		WorkflowFilepath: c.WorkflowFilepath,
		Environment:      c.Environment,
		CreatedAt:        c.CreatedAt,
	}
}

type emailJSON struct {
	ID                int64  `json:"id"`
	Address           string `json:"address"`
	Verified          bool   `json:"verified"`
	Primary           bool   `json:"primary"`
	SendNotifications bool   `json:"send_notifications"`
}

func wireEmailJSON(e *store.Email) emailJSON {
	return emailJSON{
		ID:                e.ID,
		Address:           e.Address,
		Verified:          e.Verified,
		Primary:           e.Primary,
		SendNotifications: e.SendNotifications,
	}
}

type ownedCrateJSON struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	EmailNotifications bool   `json:"email_notifications"`
}
