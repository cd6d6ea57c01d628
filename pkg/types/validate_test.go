package types

import "testing"

import "github.com/stretchr/testify/assert"

func TestPipelineModel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		model   PipelineModel
		wantErr bool
	}{
		{
			name: "valid single stage",
			model: PipelineModel{
				Name: "build",
				Stages: []Stage{
					{Name: "compile", Steps: []Step{{Name: "go-build", Command: "go build"}}},
				},
			},
			wantErr: false,
		},
		{
			name:    "no stages",
			model:   PipelineModel{Name: "empty"},
			wantErr: true,
		},
		{
			name: "duplicate step names",
			model: PipelineModel{
				Name: "dup",
				Stages: []Stage{
					{Name: "s1", Steps: []Step{{Name: "a", Command: "echo"}}},
					{Name: "s2", Steps: []Step{{Name: "a", Command: "echo"}}},
				},
			},
			wantErr: true,
		},
		{
			name: "missing required artifact",
			model: PipelineModel{
				Name: "missing-artifact",
				Stages: []Stage{
					{Name: "s1", Requires: []string{"binary"}, Steps: []Step{{Name: "a", Command: "echo"}}},
				},
			},
			wantErr: true,
		},
		{
			name: "satisfied artifact dependency",
			model: PipelineModel{
				Name: "ok",
				Stages: []Stage{
					{Name: "build", Steps: []Step{{Name: "compile", Command: "go build", Produces: []string{"binary"}}}},
					{Name: "test", Steps: []Step{{Name: "run", Command: "./binary", Requires: []string{"binary"}}}},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkerCapacity_Fits(t *testing.T) {
	capacity := WorkerCapacity{CPUMillis: 2000, MemoryBytes: 4 << 30, UsedCPUMillis: 1000, UsedMemoryBytes: 1 << 30}
	assert.True(t, capacity.Fits(WorkerRequirements{CPUMillis: 500, MemoryBytes: 1 << 30}))
	assert.False(t, capacity.Fits(WorkerRequirements{CPUMillis: 2000, MemoryBytes: 1 << 30}))
}
