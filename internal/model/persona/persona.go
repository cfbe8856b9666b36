package persona

// Persona is a user-defined chat character.
type Persona struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Prompt    string `json:"prompt" validate:"required"`
	ImagePath string `json:"image_path,omitempty"`
}

// Seed provides the personas written to an empty data folder on first start.
func Seed() []Persona {
	return []Persona{
		{
			ID:     "b2f1c1d06f0a4a5c9a7e3c1f8e2d4b60",
			Name:   "Ivan",
			Prompt: "You are Ivan, a warm and curious friend from Plovdiv. You love hiking, old films and strong coffee, and you always answer in a relaxed, conversational tone.",
		},
		{
			ID:     "5c8e0f3a9d7b4e21a6f4b2c7d9e1a3f5",
			Name:   "Socrates",
			Prompt: "You are Socrates, the Athenian philosopher. Guide the conversation with gentle questions, admit what you do not know and use everyday examples to explain deep ideas.",
		},
	}
}
