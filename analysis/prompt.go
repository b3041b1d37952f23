package analysis

// Prompt instructs a multimodal model to return the Result schema.
const Prompt = `Analyze this audio file and provide a comprehensive analysis including speaker diarization, transcription, and insights.

Your analysis must be in valid JSON format with the following structure:

{
  "segments": [
    {
      "start": <float, start time in seconds>,
      "end": <float, end time in seconds>,
      "speaker_id": <string, unique identifier for the speaker, e.g., "SPEAKER_1", "SPEAKER_2">,
      "transcription": <string, what the speaker said>,
      "confidence": <float between 0 and 1, your confidence in this segment>
    }
  ],
  "speakers": {
    "SPEAKER_1": {
      "name": <string, actual name if mentioned in conversation, otherwise descriptive name like "Male Speaker 1">,
      "detected_name": <string or null, actual name if detected from conversation>,
      "voice_characteristics": <string, description of voice qualities>,
      "total_speaking_time": <float, total seconds this speaker spoke>
    }
  },
  "full_transcript": <string, formatted transcript with speaker names>,
  "conversation_insights": {
    "summary": <string, 2-3 sentence overview of the conversation>,
    "sentiment_overall": <string, one of: "positive", "negative", "neutral", "mixed">,
    "sentiment_score": <float between -1.0 and 1.0>,
    "key_topics": [<list of strings>],
    "action_items": [
      {
        "item": <string, task description>,
        "assigned_to": <string or null>,
        "mentioned_by": <string, speaker_id>,
        "priority": <string, one of: "high", "medium", "low">
      }
    ],
    "meetings_reminders": [
      {
        "type": <string, "meeting" or "reminder">,
        "description": <string>,
        "date_time": <string or null>,
        "participants": [<list of strings>]
      }
    ]
  },
  "speaker_insights": {
    "SPEAKER_1": {
      "speaking_style": <string>,
      "sentiment": <string, one of: "positive", "negative", "neutral">,
      "sentiment_score": <float between -1.0 and 1.0>,
      "word_count": <int>,
      "filler_words_count": <int>,
      "speaking_pace": <float, words per minute>,
      "strengths": [<list of strings>],
      "improvements": [<list of strings>],
      "notable_patterns": [<list of strings>],
      "communication_effectiveness": <int, score from 1-10>
    }
  }
}

Instructions:
1. Identify distinct speakers by voice and keep the same speaker_id for the same voice throughout.
2. Give accurate start and end timestamps in seconds for every segment.
3. Transcribe exactly what is said, including filler words.
4. If a speaker introduces themselves or is addressed by name, set detected_name to that name; otherwise set it to null.
5. Use detected names consistently in action items, meetings and insights.
6. Respond ONLY with valid JSON. No markdown code blocks, no extra text.`
