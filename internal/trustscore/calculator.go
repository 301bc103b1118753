// Package trustscore derives a user's 0-100 trust score from the
// verification status of their credential records.
package trustscore

import (
	"math"

	"trustline/portal-backend/internal/credentials"
)

type Level string

const (
	LevelElite       Level = "Elite"
	LevelTrusted     Level = "Trusted"
	LevelEstablished Level = "Established"
	LevelEmerging    Level = "Emerging"
	LevelBuilding    Level = "Building"
)

const (
	ExperienceWeight    = 35
	EducationWeight     = 35
	CertificationWeight = 30
	// Awarded per verified experience/education category when the user has
	// no certification records at all.
	BonusPerCategory = 15
)

// Breakdown is the result of one computation.
type Breakdown struct {
	ExperienceScore        int   `json:"experience_score"`
	EducationScore         int   `json:"education_score"`
	CertificationScore     int   `json:"certification_score"`
	TotalScore             int   `json:"total_score"`
	Level                  Level `json:"level"`
	BonusApplied           bool  `json:"bonus_applied"`
	VerifiedCertifications int   `json:"verified_certifications"`
	TotalCertifications    int   `json:"total_certifications"`
}

// Calculate is pure: the same set always yields the same breakdown.
func Calculate(set credentials.StatusSet) Breakdown {
	var b Breakdown

	expVerified := anyVerified(set.Experiences)
	eduVerified := anyVerified(set.Educations)
	if expVerified {
		b.ExperienceScore = ExperienceWeight
	}
	if eduVerified {
		b.EducationScore = EducationWeight
	}

	b.TotalCertifications = len(set.Certifications)
	b.VerifiedCertifications = countVerified(set.Certifications)

	if b.TotalCertifications == 0 {
		b.BonusApplied = true
		if expVerified {
			b.CertificationScore += BonusPerCategory
		}
		if eduVerified {
			b.CertificationScore += BonusPerCategory
		}
	} else {
		ratio := float64(b.VerifiedCertifications) / float64(b.TotalCertifications)
		b.CertificationScore = int(math.Round(ratio * CertificationWeight))
	}

	b.TotalScore = clamp(b.ExperienceScore+b.EducationScore+b.CertificationScore, 0, 100)
	b.Level = LevelFor(b.TotalScore)
	return b
}

// LevelFor maps a total score onto its display band.
func LevelFor(score int) Level {
	switch {
	case score >= 90:
		return LevelElite
	case score >= 75:
		return LevelTrusted
	case score >= 50:
		return LevelEstablished
	case score >= 25:
		return LevelEmerging
	default:
		return LevelBuilding
	}
}

func anyVerified(statuses []credentials.Status) bool {
	for _, st := range statuses {
		if st == credentials.StatusVerified {
			return true
		}
	}
	return false
}

func countVerified(statuses []credentials.Status) int {
	n := 0
	for _, st := range statuses {
		if st == credentials.StatusVerified {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
