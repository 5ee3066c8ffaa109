package analysis

// Result carries every stage output of one pipeline run.
type Result struct {
	Record  Record  `json:"record"`
	Metrics Metrics `json:"metrics"`
	Report  Report  `json:"report"`
}

// Analyze runs the full pipeline on a raw field map and returns the Report.
func Analyze(raw map[string]any) (Report, error) {
	res, err := Run(raw)
	if err != nil {
		return Report{}, err
	}
	return res.Report, nil
}

// Run is Analyze, but also returns the intermediate Record and Metrics.
func Run(raw map[string]any) (Result, error) {
	rec, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}
	return RunRecord(rec), nil
}

// RunRecord runs the metric and advisory stages on an already normalized record.
func RunRecord(rec Record) Result {
	m := Compute(rec)
	return Result{
		Record:  rec,
		Metrics: m,
		Report:  Advise(m),
	}
}

// Stage names of the pipeline graph.
const (
	StageInput           = "input"
	StageProcessing      = "processing"
	StageRecommendations = "recommendations"
)

// Graph describes the static stage wiring of the pipeline.
type Graph struct {
	Nodes      []string    `json:"nodes"`
	Edges      [][2]string `json:"edges"`
	EntryPoint string      `json:"entry_point"`
	EndPoints  []string    `json:"end_points"`
}

// Pipeline returns the stage graph that Analyze follows.
func Pipeline() Graph {
	return Graph{
		Nodes: []string{StageInput, StageProcessing, StageRecommendations},
		Edges: [][2]string{
			{StageInput, StageProcessing},
			{StageProcessing, StageRecommendations},
		},
		EntryPoint: StageInput,
		EndPoints:  []string{StageRecommendations},
	}
}
