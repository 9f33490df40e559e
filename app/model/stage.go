package model

type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageQualification Stage = "qualification"
	StageClosing       Stage = "closing"
)

const (
	QualificationThreshold = 40
	ClosingThreshold       = 70
)

func StageFor(probability int) Stage {
	switch {
	case probability >= ClosingThreshold:
		return StageClosing
	case probability >= QualificationThreshold:
		return StageQualification
	default:
		return StageDiscovery
	}
}

type LeadClass string

const (
	LeadHot  LeadClass = "hot"
	LeadWarm LeadClass = "warm"
	LeadCold LeadClass = "cold"
)

func ClassFor(probability int) LeadClass {
	switch {
	case probability >= ClosingThreshold:
		return LeadHot
	case probability >= QualificationThreshold:
		return LeadWarm
	default:
		return LeadCold
	}
}
