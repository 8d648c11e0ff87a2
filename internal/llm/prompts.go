package llm

import "fmt"

const (
	mergeSystem = "You are an expert resume formatter that helps customize resume templates with user data."
	editSystem  = "You are an expert resume editor that makes precise, minimal edits to HTML resume documents."
)

func mergePrompt(templateHTML, resumeText string) string {
	return fmt.Sprintf(`I have a resume template in HTML:
`+"```html"+`
%s
`+"```"+`

And I have extracted text from a user's resume:
`+"```"+`
%s
`+"```"+`

Please customize the HTML resume template with the user's resume information.
Keep the same structure, styling, and formatting of the original HTML template,
but replace the content with relevant information from the user's resume.

Only return the complete HTML document, with no additional text or explanations.
`, templateHTML, resumeText)
}

func editPrompt(documentHTML, selector, instruction string) string {
	return fmt.Sprintf(`Here is an HTML resume document:
`+"```html"+`
%s
`+"```"+`

Edit only the element matching this selector: %s
Instruction: %s

Leave every other element, attribute, and style unchanged.
Only return the complete updated HTML document, with no additional text or explanations.
`, documentHTML, selector, instruction)
}
