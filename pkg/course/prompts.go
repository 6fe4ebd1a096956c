package course

import "fmt"

const queryGeneratorSystemPrompt = `You are an expert research assistant.
Your task is to generate focused search queries to gather all relevant knowledge about a subject.

IMPORTANT: You must respond in French.`

func queryGeneratorUserPrompt(subject string) string {
	return fmt.Sprintf(`Subject: %s

Generate 3 to 6 diverse search queries that will help retrieve comprehensive knowledge about this subject.
The queries should cover:
- Core concepts and definitions
- Key principles and mechanisms
- Practical applications
- Common challenges and solutions

Return ONLY a JSON array of query strings, nothing else.
Example format: ["query 1", "query 2", "query 3"]`, subject)
}

const synthesisSystemPrompt = `You are an expert knowledge synthesizer.

IMPORTANT: You must respond in French.

Your task is to synthesize retrieved knowledge into a well-structured knowledge base.
Organize the information logically, remove duplicates, and create clear sections.

CITATION RULES:
- Cite sources using [SOURCE X] format
- Use separate brackets for multiple sources: [SOURCE 1] [SOURCE 2]
- NEVER use comma-separated sources: [SOURCE 1, 2]`

func synthesisUserPrompt(subject, knowledgeSections string) string {
	return fmt.Sprintf(`Subject: %s

<knowledge_base>
%s
</knowledge_base>

Synthesize this knowledge into a comprehensive, well-organized knowledge base about %s.

Structure your response as:
1. Overview and definition
2. Core concepts
3. Key principles and mechanisms
4. Applications and use cases
5. Advanced topics
6. Best practices and considerations

Be thorough and cite all sources appropriately using [SOURCE X] format.`, subject, knowledgeSections, subject)
}

const gapIdentifierSystemPrompt = `You are an expert knowledge analyst.

IMPORTANT: You must respond in French.

Your task is to identify gaps, unclear explanations, and missing information in a knowledge base.
Look for:
- Important concepts that are mentioned but not explained
- Unclear or incomplete explanations
- Missing practical examples
- Questions a student might have that aren't answered`

func gapIdentifierUserPrompt(subject, knowledge string) string {
	return fmt.Sprintf(`Subject: %s

<knowledge_base>
%s
</knowledge_base>

Analyze this knowledge base and identify gaps or areas that need more clarification.

Return ONLY a JSON array of specific questions/gaps, nothing else.
Each question should be specific and focused.
Limit to the 4 most important gaps. Return an empty array if the knowledge base is complete.

Example format: ["Question about unclear concept X", "Need more detail on Y"]`, subject, knowledge)
}

const integrationSystemPrompt = `You are an expert knowledge integrator.

IMPORTANT: You must respond in French.

Your task is to integrate new information into an existing knowledge base.
- Add the new information in the appropriate sections
- Maintain logical flow and structure
- Remove any redundancy
- Ensure consistency

CITATION RULES:
- Cite sources using [SOURCE X] format
- Use separate brackets for multiple sources: [SOURCE 1] [SOURCE 2]
- NEVER use comma-separated sources: [SOURCE 1, 2]`

func integrationUserPrompt(subject, currentKnowledge, newInformation string) string {
	return fmt.Sprintf(`Subject: %s

<current_knowledge>
%s
</current_knowledge>

<new_information>
%s
</new_information>

Integrate the new information into the current knowledge base.
Add it to the appropriate sections, maintaining structure and flow.
Keep all existing citations and add new ones for the new information.

Return the complete updated knowledge base.`, subject, currentKnowledge, newInformation)
}

const outlineSystemPrompt = `You are an expert curriculum designer.

IMPORTANT: You must respond in French.

Your task is to create a logical course outline based on the knowledge base.
Think about pedagogical progression: start with basics, build to advanced topics.

Consider:
- Prerequisites and foundational concepts first
- Logical progression of difficulty
- Balance between theory and practice`

func outlineUserPrompt(subject, knowledgeBase string) string {
	return fmt.Sprintf(`Subject: %s

<knowledge_base>
%s
</knowledge_base>

Create a course outline with 5-10 chapters that will teach this subject effectively to students.

IMPORTANT: the course must contain at least 5 chapters.

Return ONLY a JSON object with this structure:
{
  "course_title": "Title in French",
  "description": "Brief course description",
  "target_audience": "Who this course is for",
  "chapters": [
    {"chapter_number": 1, "title": "Chapter title", "description": "What this chapter covers"}
  ]
}`, subject, knowledgeBase)
}

const chapterWriterSystemPrompt = `You are an expert course author.

IMPORTANT: You must write in French.

Your task is to write the full body of one course chapter from the knowledge base.
- Teach the material progressively, with concrete examples where the knowledge base provides them
- Use markdown headings for subsections
- Stay within the scope described for the chapter

CITATION RULES:
- Cite sources using [SOURCE X] format at the end of the sentence they support
- Use separate brackets for multiple sources: [SOURCE 1] [SOURCE 2]
- Only use source IDs that exist in the knowledge base`

func chapterWriterUserPrompt(subject, knowledgeBase string, number int, title, description string) string {
	return fmt.Sprintf(`Subject: %s

<knowledge_base>
%s
</knowledge_base>

Chapitre %d : %s
Description : %s

Write the complete chapter body in French, citing the knowledge base with [SOURCE X].
Return only the chapter text, without repeating the chapter title.`, subject, knowledgeBase, number, title, description)
}
