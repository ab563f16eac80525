package parser

import (
	"fmt"

	"docparse/pkg/models"
)

// maxReferenceDistance is the largest start-offset gap for linked entities.
const maxReferenceDistance = 1000

type typePair struct {
	a, b models.EntityType
}

var referenceTypes = map[typePair]string{
	{models.EntityPerson, models.EntityOrganization}:        "employed_by",
	{models.EntityOrganization, models.EntityContractParty}: "is_party",
	{models.EntityDate, models.EntityObligation}:            "due_date",
	{models.EntityMoney, models.EntityPenalty}:              "penalty_amount",
	{models.EntityLocation, models.EntityJurisdiction}:      "under_jurisdiction",
}

// referenceType looks the pair up in both directions.
func referenceType(a, b models.EntityType) (string, bool) {
	if t, ok := referenceTypes[typePair{a, b}]; ok {
		return t, true
	}
	if t, ok := referenceTypes[typePair{b, a}]; ok {
		return t, true
	}
	return "related_to", false
}

func extractCrossReferences(entities []models.NamedEntity) []models.CrossReference {
	var out []models.CrossReference
	for i := range entities {
		for j := i + 1; j < len(entities); j++ {
			e1, e2 := entities[i], entities[j]
			distance := e1.TextSpan.StartOffset - e2.TextSpan.StartOffset
			if distance < 0 {
				distance = -distance
			}
			if distance > maxReferenceDistance {
				continue
			}
			refType, ok := referenceType(e1.Type, e2.Type)
			if !ok {
				continue
			}
			out = append(out, models.CrossReference{
				ID:             fmt.Sprintf("ref_%04d", len(out)+1),
				SourceEntityID: e1.ID,
				TargetEntityID: e2.ID,
				ReferenceType:  refType,
				Confidence:     min(e1.Confidence, e2.Confidence),
				Metadata: map[string]interface{}{
					"detection_method": "proximity_based",
					"distance":         distance,
				},
			})
		}
	}
	return out
}
