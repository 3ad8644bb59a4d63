package cli

const entityTemplate = `
=== {{.EntityType}} {{.ID}} ===

Version:  {{.Version}} (base {{.BaseVersion}})
Created:  {{ts .CreatedAt}}
Modified: {{ts .LastModified}}
{{- if .IsPendingSync }}
Pending:  {{.PendingOperation}}
{{- end}}

Fields:
{{- range $name, $value := .Fields }}
  {{$name}}: {{json $value}}
{{- else }}
  (none)
{{- end}}
`

const entityListTemplate = `
=== Saved {{.Type}} records ===

{{- if eq (len .Entities) 0 }}
No {{.Type}} records found.

Use 'gophsync put {{.Type}} key=value' to add your first record.
{{ else }}
Found {{len .Entities}} record(s):

{{- range .Entities }}
- {{ .ID }}
   Version:  {{ .Version }}
   Modified: {{ ts .LastModified }}
   {{- if .IsPendingSync }}
   Pending:  {{ .PendingOperation }}
   {{- end }}
   {{- with index .Fields "title" }}
   Title:    {{ . }}
   {{- end }}
{{- end }}

Use 'gophsync get {{.Type}} <id>' to view all fields.
{{- end }}
`

const syncResultTemplate = `
=== Synchronization ===
{{- range . }}

{{ .EntityType }}: {{ .Status }}
   Uploaded:   {{ .UploadedCount }}
   Downloaded: {{ .DownloadedCount }}
   {{- if .ConflictCount }}
   Conflicts:  {{ .ConflictCount }}
   {{- end }}
   {{- range .Errors }}
   Error:      {{ . }}
   {{- end }}
{{- end }}
`

const conflictListTemplate = `
=== Open conflicts ===

{{- if eq (len .) 0 }}
No open conflicts.
{{ else }}
Found {{len .}} conflict(s):

{{- range . }}
- {{ .EntityType }}/{{ .EntityID }}
   Detected: {{ ts .DetectedAt }}
   Local:    v{{ .Local.Version }}, modified {{ ts .Local.LastModified }}
   Remote:   v{{ .Remote.Version }}, modified {{ ts .Remote.LastModified }}
   {{- range .Conflicts }}
   {{ .Field }}: base={{ json .BaseValue }} local={{ json .LocalValue }} remote={{ json .RemoteValue }}
   {{- end }}
{{- end }}

Use 'gophsync resolve <type> <id> --take local|remote' to resolve.
{{- end }}
`

const statusTemplate = `
=== Sync Status ===

Replica: {{ .OriginID }}
{{- range .Types }}

{{ .EntityType }}
   Last sync: {{ ts .LastSyncedAt }}
   Pending:   {{ .Pending }}
   Conflicts: {{ .Conflicts }}
{{- end }}
`
