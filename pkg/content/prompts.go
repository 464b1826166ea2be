package content

import (
	"fmt"
	"strings"
)

func buildLessonPrompt(topic string, contextChunks []string, userContext string) string {
	context := strings.Join(contextChunks, "\n\n---\n\n")
	if context == "" {
		context = "No specific context provided - use general knowledge"
	}
	studentContext := ""
	if userContext != "" {
		studentContext = fmt.Sprintf("STUDENT CONTEXT: %s\n", userContext)
	}

	return fmt.Sprintf(`You are an expert AI tutor creating an interactive lesson.

TOPIC: %s
%s
RELEVANT COURSE MATERIAL:
%s

Generate an engaging, educational lesson sequence that explains this topic. The sequence should:
1. Start with a friendly introduction
2. Break down the concept into digestible parts
3. Use visual elements on the whiteboard
4. Include equations where relevant (use LaTeX format)
5. End with a comprehension checkpoint

OUTPUT FORMAT (JSON array of sequences):
[
  {
    "id": "unique-id",
    "title": "Sequence Title",
    "duration": 120,
    "actions": [
      {
        "at": 0,
        "type": "instructor",
        "content": {
          "mode": "abstract",
          "emotion": "friendly",
          "speak": "Welcome! Today we're going to explore...",
          "gesture": "wave"
        }
      },
      {
        "at": 5,
        "type": "board",
        "content": {
          "zone": "center",
          "elements": [
            {
              "id": "title-1",
              "type": "text",
              "position": { "x": 400, "y": 50 },
              "style": { "fontSize": 32, "fontWeight": "bold" },
              "content": { "text": "Topic Title" },
              "animation": { "type": "fadeIn", "duration": 500 }
            }
          ]
        }
      },
      {
        "at": 30,
        "type": "board",
        "content": {
          "zone": "center",
          "elements": [
            {
              "id": "equation-1",
              "type": "equation",
              "position": { "x": 400, "y": 200 },
              "content": { "latex": "E = mc^2" },
              "animation": { "type": "draw", "duration": 1000 }
            }
          ]
        }
      }
    ],
    "checkpoint": {
      "id": "checkpoint-1",
      "type": "comprehension",
      "prompt": "What is the key concept we just learned?",
      "acceptInput": true,
      "options": ["Option A", "Option B", "Option C"],
      "correctAnswer": "Option B",
      "xpReward": 20
    }
  }
]

IMPORTANT:
- Use timestamps (in seconds) for the "at" field
- Keep speak text conversational and encouraging
- Use LaTeX for any mathematical expressions (\frac{a}{b}, \sqrt{x}, etc.)
- Include visual animations to keep engagement high
- The checkpoint should test genuine understanding

Generate the lesson sequence now:`, topic, studentContext, context)
}

func buildInterruptPrompt(question, currentTopic string, contextChunks []string) string {
	context := strings.Join(contextChunks, "\n\n---\n\n")
	if context == "" {
		context = "Use your knowledge to help the student"
	}

	title := question
	if len(title) > 30 {
		title = title[:30] + "..."
	}

	return fmt.Sprintf(`You are an AI tutor responding to a student's question during a lesson.

CURRENT TOPIC: %s
STUDENT'S QUESTION: %s

RELEVANT MATERIAL:
%s

Generate a brief, focused lesson sequence that directly answers the student's question.
Keep it concise (30-60 seconds) and return to the main lesson flow afterward.

OUTPUT FORMAT (JSON array with a single sequence, title "Answer: %s"):
[
  {
    "id": "explanation-1",
    "title": "Answer: %s",
    "actions": [
      {
        "at": 0,
        "type": "instructor",
        "content": {
          "mode": "abstract",
          "emotion": "thoughtful",
          "speak": "Great question! Let me explain...",
          "gesture": "thinking"
        }
      }
    ]
  }
]

Generate the explanation sequence:`, currentTopic, question, context, title, title)
}

func buildJudgePrompt(checkpointPrompt, correctAnswer, userAnswer string) string {
	expected := ""
	if correctAnswer != "" {
		expected = fmt.Sprintf("Expected Answer: %s\n", correctAnswer)
	}
	return fmt.Sprintf(`You are evaluating a student's answer to a comprehension question.

Question: %s
%sStudent's Answer: %s

Evaluate if the student's answer is correct. Consider:
1. Core concept understanding (most important)
2. Terminology accuracy
3. Completeness of explanation

Respond in JSON format:
{
  "isCorrect": boolean,
  "feedback": "Brief, encouraging feedback",
  "partialCredit": number (0-100)
}`, checkpointPrompt, expected, userAnswer)
}
