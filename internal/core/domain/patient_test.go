package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBMI(t *testing.T) {
	assert.Equal(t, 22.9, ComputeBMI(70, 175))
	assert.Equal(t, 0.0, ComputeBMI(0, 175))
	assert.Equal(t, 0.0, ComputeBMI(70, 0))
}

func TestCondition_IsActive(t *testing.T) {
	assert.True(t, Condition{Condition: "hypertension", Status: "active"}.IsActive())
	assert.True(t, Condition{Condition: "asthma", Status: "chronic"}.IsActive())
	assert.False(t, Condition{Condition: "pneumonia", Status: "resolved"}.IsActive())
	assert.False(t, Condition{Condition: "gout", Status: "inactive"}.IsActive())
}

func TestPatientContext_HasActiveCondition(t *testing.T) {
	pc := &PatientContext{Conditions: []Condition{
		{Condition: "Chronic Kidney Disease", Status: "active"},
		{Condition: "peptic ulcer", Status: "resolved"},
	}}

	assert.True(t, pc.HasActiveCondition("kidney"))
	assert.False(t, pc.HasActiveCondition("ulcer"))
	assert.False(t, pc.HasActiveCondition("liver", "hepatic"))

	var nilCtx *PatientContext
	assert.False(t, nilCtx.HasActiveCondition("kidney"))
}

func TestPatientContext_Lab(t *testing.T) {
	pc := &PatientContext{LabValues: map[string]LabValue{LabINR: {Value: 3.2}}}

	v, ok := pc.Lab(LabINR)
	assert.True(t, ok)
	assert.Equal(t, 3.2, v.Value)
	assert.True(t, pc.HasLabs())

	_, ok = pc.Lab(LabEGFR)
	assert.False(t, ok)

	var nilCtx *PatientContext
	_, ok = nilCtx.Lab(LabINR)
	assert.False(t, ok)
	assert.False(t, nilCtx.HasLabs())
}
