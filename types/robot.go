package types

// RobotStats holds the descriptive stats the multimodal service derives from
// an input photograph. Bounds are conventions requested in the prompt, not
// enforced by the service: HP 500-2000, ATK 10-100, DEF 5-50.
type RobotStats struct {
	Name              string `json:"name"`
	Lore              string `json:"lore"`
	HP                int    `json:"hp"`
	ATK               int    `json:"atk"`
	DEF               int    `json:"def"`
	VisualDescription string `json:"visual_description"`
}
