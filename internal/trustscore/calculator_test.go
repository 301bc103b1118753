package trustscore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trustline/portal-backend/internal/credentials"
)

const (
	pending  = credentials.StatusPending
	verified = credentials.StatusVerified
	rejected = credentials.StatusRejected
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		set       credentials.StatusSet
		total     int
		certScore int
		level     Level
		bonus     bool
	}{
		{
			name:  "no credentials",
			set:   credentials.StatusSet{},
			total: 0, certScore: 0, level: LevelBuilding, bonus: true,
		},
		{
			name: "experience and education verified without certifications",
			set: credentials.StatusSet{
				Experiences: []credentials.Status{verified},
				Educations:  []credentials.Status{verified},
			},
			total: 100, certScore: 30, level: LevelElite, bonus: true,
		},
		{
			name: "experience verified only",
			set: credentials.StatusSet{
				Experiences: []credentials.Status{pending, verified},
				Educations:  []credentials.Status{rejected},
			},
			total: 50, certScore: 15, level: LevelEstablished, bonus: true,
		},
		{
			name: "half of four certifications verified",
			set: credentials.StatusSet{
				Certifications: []credentials.Status{verified, verified, pending, rejected},
			},
			total: 15, certScore: 15, level: LevelBuilding,
		},
		{
			name: "certifications present but none verified disables bonus",
			set: credentials.StatusSet{
				Experiences:    []credentials.Status{verified},
				Educations:     []credentials.Status{verified},
				Certifications: []credentials.Status{pending},
			},
			total: 70, certScore: 0, level: LevelEstablished,
		},
		{
			name: "one in four rounds half up",
			set: credentials.StatusSet{
				Experiences:    []credentials.Status{verified},
				Educations:     []credentials.Status{verified},
				Certifications: []credentials.Status{verified, pending, pending, pending},
			},
			total: 78, certScore: 8, level: LevelTrusted,
		},
		{
			name: "one in three",
			set: credentials.StatusSet{
				Educations:     []credentials.Status{verified},
				Certifications: []credentials.Status{verified, pending, rejected},
			},
			total: 45, certScore: 10, level: LevelEmerging,
		},
		{
			name: "everything verified",
			set: credentials.StatusSet{
				Experiences:    []credentials.Status{verified},
				Educations:     []credentials.Status{verified},
				Certifications: []credentials.Status{verified, verified},
			},
			total: 100, certScore: 30, level: LevelElite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(tt.set)
			assert.Equal(t, tt.total, b.TotalScore)
			assert.Equal(t, tt.certScore, b.CertificationScore)
			assert.Equal(t, tt.level, b.Level)
			assert.Equal(t, tt.bonus, b.BonusApplied)
			assert.Equal(t, b.ExperienceScore+b.EducationScore+b.CertificationScore, b.TotalScore)
		})
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	set := credentials.StatusSet{
		Experiences:    []credentials.Status{verified},
		Certifications: []credentials.Status{verified, pending, pending},
	}

	assert.Equal(t, Calculate(set), Calculate(set))
}

func TestLevelForBoundaries(t *testing.T) {
	assert.Equal(t, LevelElite, LevelFor(90))
	assert.Equal(t, LevelTrusted, LevelFor(89))
	assert.Equal(t, LevelTrusted, LevelFor(75))
	assert.Equal(t, LevelEstablished, LevelFor(74))
	assert.Equal(t, LevelEstablished, LevelFor(50))
	assert.Equal(t, LevelEmerging, LevelFor(49))
	assert.Equal(t, LevelEmerging, LevelFor(25))
	assert.Equal(t, LevelBuilding, LevelFor(24))
	assert.Equal(t, LevelBuilding, LevelFor(0))
}
