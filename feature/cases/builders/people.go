package builders

import (
	"context"

	"go.uber.org/zap"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/sources"
)

func buildClinicians(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	info := sources.ClinicianInfo{Name: unknownValue, Hospital: unknownValue}
	if !bc.SkipDemographics && bc.Demographics != nil {
		fetched, err := bc.Demographics.ClinicianForFamily(ctx, cs.Case.FamilyID)
		if err != nil {
			bc.Log.Warn("clinician lookup failed, using placeholders",
				zap.String("family_id", cs.Case.FamilyID), zap.Error(err))
		} else {
			if fetched.Name != "" {
				info.Name = fetched.Name
			}
			if fetched.Hospital != "" {
				info.Hospital = fetched.Hospital
			}
		}
	}
	return []any{&models.Clinician{
		Name:     info.Name,
		Email:    unknownValue,
		Hospital: info.Hospital,
	}}, nil
}

func buildFamilies(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	clinician := firstRowOf[models.Clinician](cs, reconcile.EntityClinician)
	return []any{&models.Family{
		ClinicianID: clinician.ID,
		FamilyID:    cs.Case.FamilyID,
	}}, nil
}

func buildPhenotypes(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.Case.Proband.HPOTerms))
	for _, term := range cs.Case.Proband.HPOTerms {
		out = append(out, &models.Phenotype{HPOTerm: term, Description: unknownValue})
	}
	return out, nil
}

func buildProbands(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	family := firstRowOf[models.Family](cs, reconcile.EntityFamily)
	info := bc.participantDemographics(ctx, cs.Case.Proband.ParticipantID)
	return []any{&models.Proband{
		FamilyID:      family.ID,
		ParticipantID: cs.Case.Proband.ParticipantID,
		NHSNumber:     info.NHSNumber,
		Forename:      info.Forename,
		Surname:       info.Surname,
		DateOfBirth:   parseDOB(info.DateOfBirth),
		Sex:           cs.Case.Proband.Sex,
	}}, nil
}

func buildRelatives(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	proband := firstRowOf[models.Proband](cs, reconcile.EntityProband)
	out := make([]any, 0, len(cs.Case.Relatives))
	for _, rel := range cs.Case.Relatives {
		info := bc.participantDemographics(ctx, rel.ParticipantID)
		out = append(out, &models.Relative{
			ProbandID:         proband.ID,
			ParticipantID:     rel.ParticipantID,
			RelationToProband: rel.RelationToProband,
			AffectedStatus:    rel.AffectedStatus,
			NHSNumber:         info.NHSNumber,
			Forename:          info.Forename,
			Surname:           info.Surname,
			DateOfBirth:       parseDOB(info.DateOfBirth),
			Sex:               rel.Sex,
		})
	}
	return out, nil
}
