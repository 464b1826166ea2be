package live

// Tool is one tool entry in the setup frame.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function to the model.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the JSON-schema subset the API accepts for parameters.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Tool names dispatched by the board controller.
const (
	ToolUpdateBoard           = "updateBoard"
	ToolTriggerCheckpoint     = "triggerCheckpoint"
	ToolReportLearningInsight = "reportLearningInsight"
	ToolSearchCourseMaterial  = "searchCourseMaterial"
)

// SystemInstruction is the tutoring persona sent in the setup frame.
const SystemInstruction = `
You are an expert AI tutor named "Apex".
1. Teach dynamically using the whiteboard (updateBoard). NEVER talk for more than 2 sentences without drawing something.
2. MONITOR the student's understanding. If they ask a question, answer it visually.
3. If they seem confused, log 'confusion' using reportLearningInsight, then explain simpler.
4. Keep the tone encouraging, energetic, and concise.
5. Use "searchCourseMaterial" if you need specific facts from the uploaded content.
`

// TutorTools returns the tool declarations for a tutoring session.
func TutorTools() []Tool {
	return []Tool{{FunctionDeclarations: []FunctionDeclaration{
		{
			Name:        ToolUpdateBoard,
			Description: "Updates the whiteboard with text, equations, diagrams, or shapes. Use this to visually explain concepts.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"clear": {Type: "boolean", Description: "Whether to clear the board first"},
					"zone":  {Type: "string", Enum: []string{"left", "center", "right", "full"}},
					"elements": {
						Type:        "array",
						Description: "List of visual elements to add",
						Items: &Schema{
							Type: "object",
							Properties: map[string]*Schema{
								"id":   {Type: "string"},
								"type": {Type: "string", Enum: []string{"text", "equation", "shape", "diagram", "code"}},
								"position": {
									Type: "object",
									Properties: map[string]*Schema{
										"x":      {Type: "number"},
										"y":      {Type: "number"},
										"width":  {Type: "number"},
										"height": {Type: "number"},
									},
								},
								"content": {Type: "object", Description: "Content object specific to type (text, latex, shape, etc)"},
								"style":   {Type: "object", Description: "Style properties (fill, stroke, fontSize, etc)"},
							},
						},
					},
				},
			},
		},
		{
			Name:        ToolTriggerCheckpoint,
			Description: "Pauses the lesson to ask the student a formal multiple-choice or open-ended question.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"prompt":        {Type: "string"},
					"correctAnswer": {Type: "string"},
					"options":       {Type: "array", Items: &Schema{Type: "string"}},
					"xpReward":      {Type: "number"},
				},
				Required: []string{"prompt", "correctAnswer"},
			},
		},
		{
			Name:        ToolReportLearningInsight,
			Description: "Logs an observation about the student's current learning state (confusion, mastery, etc).",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"type":        {Type: "string", Enum: []string{"confusion", "mastery", "engagement", "frustration", "curiosity"}},
					"topic":       {Type: "string"},
					"observation": {Type: "string"},
					"confidence":  {Type: "number"},
				},
				Required: []string{"type", "topic", "observation"},
			},
		},
		{
			Name:        ToolSearchCourseMaterial,
			Description: "Searches the course's uploaded documents for relevant information to answer student questions.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"query": {Type: "string"},
				},
				Required: []string{"query"},
			},
		},
	}}}
}
