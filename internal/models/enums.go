package models

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectArchived  ProjectStatus = "ARCHIVED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

type ProjectType string

const (
	ProjectWeb    ProjectType = "WEB"
	ProjectMobile ProjectType = "MOBILE"
	ProjectDesign ProjectType = "DESIGN"
	ProjectOther  ProjectType = "OTHER"
)

func (t ProjectType) Valid() bool {
	switch t {
	case ProjectWeb, ProjectMobile, ProjectDesign, ProjectOther:
		return true
	}
	return false
}

type ContactType string

const (
	ContactEmail     ContactType = "EMAIL"
	ContactPhone     ContactType = "PHONE"
	ContactWebsite   ContactType = "WEBSITE"
	ContactLinkedIn  ContactType = "LINKEDIN"
	ContactGitHub    ContactType = "GITHUB"
	ContactTwitter   ContactType = "TWITTER"
	ContactInstagram ContactType = "INSTAGRAM"
)

func (t ContactType) Valid() bool {
	switch t {
	case ContactEmail, ContactPhone, ContactWebsite, ContactLinkedIn,
		ContactGitHub, ContactTwitter, ContactInstagram:
		return true
	}
	return false
}

type WorkType string

const (
	WorkFullTime   WorkType = "FULL_TIME"
	WorkPartTime   WorkType = "PART_TIME"
	WorkContract   WorkType = "CONTRACT"
	WorkFreelance  WorkType = "FREELANCE"
	WorkInternship WorkType = "INTERNSHIP"
)

func (t WorkType) Valid() bool {
	switch t {
	case WorkFullTime, WorkPartTime, WorkContract, WorkFreelance, WorkInternship:
		return true
	}
	return false
}

type DocumentType string

const (
	DocCertificate    DocumentType = "certificate"
	DocResume         DocumentType = "resume"
	DocTranscript     DocumentType = "transcript"
	DocRecommendation DocumentType = "recommendation"
	DocThesis         DocumentType = "thesis"
	DocPublication    DocumentType = "publication"
	DocPatent         DocumentType = "patent"
	DocWhitepaper     DocumentType = "whitepaper"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocCertificate, DocResume, DocTranscript, DocRecommendation,
		DocThesis, DocPublication, DocPatent, DocWhitepaper:
		return true
	}
	return false
}

type DocumentPrivacy string

const (
	PrivacyPublic   DocumentPrivacy = "public"
	PrivacyPrivate  DocumentPrivacy = "private"
	PrivacyReadOnly DocumentPrivacy = "read_only"
)

func (p DocumentPrivacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate || p == PrivacyReadOnly
}

type CertificateLevel string

const (
	LevelBeginner     CertificateLevel = "beginner"
	LevelIntermediate CertificateLevel = "intermediate"
	LevelAdvanced     CertificateLevel = "advanced"
	LevelExpert       CertificateLevel = "expert"
)

func (l CertificateLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert:
		return true
	}
	return false
}
